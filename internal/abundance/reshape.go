package abundance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/genusdiff/internal/dataset"
	"github.com/KaramelBytes/genusdiff/internal/taxa"
)

var (
	// ErrNoSampleColumn is returned when a count table lacks the sample column.
	ErrNoSampleColumn = errors.New("sample column not found")
	// ErrDuplicateCell is returned by Pivot when a (sample, genus) pair repeats.
	ErrDuplicateCell = errors.New("duplicate sample/genus cell")
)

// RenameGenera returns a copy of t whose headers are bare genus names, plus
// any collisions the renaming produced. Collisions are not resolved here.
func RenameGenera(t *dataset.Table) (*dataset.Table, []taxa.Collision) {
	header, coll := taxa.NormalizeHeader(t.Header)
	return &dataset.Table{Name: t.Name, Header: header, Rows: t.Rows}, coll
}

// Reshape pivots a wide table into one CountRecord per (sample, column) cell,
// row by row. Missing cells are kept and flagged.
func Reshape(t *dataset.Table, sampleCol string) ([]CountRecord, error) {
	si := t.Index(sampleCol)
	if si < 0 {
		return nil, fmt.Errorf("%s: %w: %q", t.Name, ErrNoSampleColumn, sampleCol)
	}
	out := make([]CountRecord, 0, len(t.Rows)*(len(t.Header)-1))
	for ri, row := range t.Rows {
		sample := ""
		if si < len(row) {
			sample = strings.TrimSpace(row[si])
		}
		for ci, genus := range t.Header {
			if ci == si {
				continue
			}
			raw := ""
			if ci < len(row) {
				raw = row[ci]
			}
			rec := CountRecord{Sample: sample, Genus: strings.TrimSpace(genus)}
			v, missing, err := parseCount(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", t.Name, ri+1, genus, err)
			}
			rec.Count = v
			rec.Missing = missing
			out = append(out, rec)
		}
	}
	return out, nil
}

func parseCount(raw string) (float64, bool, error) {
	if dataset.IsMissing(raw) {
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid count %q", raw)
	}
	if math.IsNaN(v) {
		return 0, true, nil
	}
	if math.IsInf(v, 0) || v < 0 {
		return 0, false, fmt.Errorf("count %q must be a finite non-negative number", raw)
	}
	return v, false, nil
}

// MergeDuplicates sums records sharing a (sample, genus) pair, keeping the
// first-seen order. A merged cell is missing only if every part was missing.
func MergeDuplicates(recs []CountRecord) []CountRecord {
	type key struct{ sample, genus string }
	pos := map[key]int{}
	out := make([]CountRecord, 0, len(recs))
	for _, r := range recs {
		k := key{r.Sample, r.Genus}
		i, ok := pos[k]
		if !ok {
			pos[k] = len(out)
			out = append(out, r)
			continue
		}
		if r.Missing {
			continue
		}
		if out[i].Missing {
			out[i].Count = r.Count
			out[i].Missing = false
			continue
		}
		out[i].Count += r.Count
	}
	return out
}

// Pivot rebuilds a wide table from long records. Samples and genera keep
// their first-seen order; absent cells are written as NA.
func Pivot(name, sampleCol string, recs []CountRecord) (*dataset.Table, error) {
	var samples, genera []string
	sIdx := map[string]int{}
	gIdx := map[string]int{}
	for _, r := range recs {
		if _, ok := sIdx[r.Sample]; !ok {
			sIdx[r.Sample] = len(samples)
			samples = append(samples, r.Sample)
		}
		if _, ok := gIdx[r.Genus]; !ok {
			gIdx[r.Genus] = len(genera)
			genera = append(genera, r.Genus)
		}
	}
	rows := make([][]string, len(samples))
	for i, s := range samples {
		rows[i] = make([]string, len(genera)+1)
		rows[i][0] = s
		for j := range genera {
			rows[i][j+1] = dataset.MissingMarker
		}
	}
	seen := make(map[[2]int]bool, len(recs))
	for _, r := range recs {
		cell := [2]int{sIdx[r.Sample], gIdx[r.Genus]}
		if seen[cell] {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateCell, r.Sample, r.Genus)
		}
		seen[cell] = true
		rows[cell[0]][cell[1]+1] = formatCount(r)
	}
	header := append([]string{sampleCol}, genera...)
	return &dataset.Table{Name: name, Header: header, Rows: rows}, nil
}
