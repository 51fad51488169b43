package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type delimitedLoader struct{}

func (delimitedLoader) CanLoad(path string) bool {
	name := strings.ToLower(path)
	return strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".csv")
}

func (delimitedLoader) Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return ReadDelimited(f, filepath.Base(path), sniffDelimiter(path))
}

// ReadDelimited parses a header row followed by data rows. Short rows are
// padded; an empty input is an error since every table needs a header.
func ReadDelimited(r io.Reader, name string, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comment = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file, header row required", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	header = trimBOM(header)
	t := &Table{Name: name, Header: header}
	ncol := len(header)
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: read row %d: %w", name, len(t.Rows)+1, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && ncol > 1 {
			continue
		}
		if len(rec) > ncol {
			return nil, fmt.Errorf("%s: row %d has %d fields, header has %d", name, len(t.Rows)+1, len(rec), ncol)
		}
		t.Rows = append(t.Rows, pad(rec, ncol))
	}
	return t, nil
}

func sniffDelimiter(path string) rune {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".csv") {
		return ','
	}
	// .tsv and .txt count exports are tab-separated.
	return '\t'
}

func trimBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}
