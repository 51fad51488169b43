package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// MissingMarker is written for absent or undefined values.
const MissingMarker = "NA"

// Table is a rectangular string table with a header row.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// IsMissing reports whether a raw cell counts as missing.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == MissingMarker
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(col string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == col {
			return i
		}
	}
	return -1
}

// Select returns a new table holding only the named columns, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("%s: missing column %q", t.Name, c)
		}
		idx[i] = j
	}
	out := &Table{Name: t.Name, Header: append([]string(nil), cols...), Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		r := make([]string, len(idx))
		for i, j := range idx {
			if j < len(row) {
				r[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// WriteTSV writes the header and rows tab-separated.
func (t *Table) WriteTSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// pad extends short rows to n columns.
func pad(rec []string, n int) []string {
	if len(rec) >= n {
		return rec
	}
	tmp := make([]string, n)
	copy(tmp, rec)
	return tmp
}
