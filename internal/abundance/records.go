// Package abundance turns wide genus count tables into long records and
// derives relative abundances joined to sample metadata.
package abundance

import (
	"math"
	"strconv"

	"github.com/KaramelBytes/genusdiff/internal/dataset"
)

// Column names used in long-format outputs.
const (
	ColSample            = "Sample"
	ColGenus             = "Bacterial_Group"
	ColCount             = "Count"
	ColRelativeAbundance = "Relative_Abundance"
	ColGroup             = "Study.Group"
)

// CountRecord is one (sample, genus) cell of a count table.
type CountRecord struct {
	Sample  string
	Genus   string
	Count   float64
	Missing bool // the source cell was empty or NA
}

// RelativeRecord is a count with its share of the sample total.
type RelativeRecord struct {
	CountRecord
	RelativeAbundance float64
}

// MetadataRecord assigns a sample to a study group.
type MetadataRecord struct {
	Sample string
	Group  string
}

// MergedRecord is a relative abundance joined to its sample's study group.
type MergedRecord struct {
	RelativeRecord
	Group string
}

// FormatValue renders a number for TSV output; NaN becomes NA.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return dataset.MissingMarker
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatCount(r CountRecord) string {
	if r.Missing {
		return dataset.MissingMarker
	}
	return FormatValue(r.Count)
}

// CountsTable renders records as Sample, Bacterial_Group, Count.
func CountsTable(name string, recs []CountRecord) *dataset.Table {
	t := &dataset.Table{Name: name, Header: []string{ColSample, ColGenus, ColCount}, Rows: make([][]string, 0, len(recs))}
	for _, r := range recs {
		t.Rows = append(t.Rows, []string{r.Sample, r.Genus, formatCount(r)})
	}
	return t
}

// RelativeTable renders records with an extra Relative_Abundance column.
func RelativeTable(name string, recs []RelativeRecord) *dataset.Table {
	t := &dataset.Table{Name: name, Header: []string{ColSample, ColGenus, ColCount, ColRelativeAbundance}, Rows: make([][]string, 0, len(recs))}
	for _, r := range recs {
		t.Rows = append(t.Rows, []string{r.Sample, r.Genus, formatCount(r.CountRecord), FormatValue(r.RelativeAbundance)})
	}
	return t
}

// MetadataTable renders metadata records under the given column names.
func MetadataTable(name, sampleCol, groupCol string, recs []MetadataRecord) *dataset.Table {
	t := &dataset.Table{Name: name, Header: []string{sampleCol, groupCol}, Rows: make([][]string, 0, len(recs))}
	for _, r := range recs {
		t.Rows = append(t.Rows, []string{r.Sample, r.Group})
	}
	return t
}
