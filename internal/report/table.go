// Package report renders result tables and Markdown summaries.
package report

import (
	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/dataset"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
)

// TopColumns is the header of a top-N results table.
var TopColumns = []string{abundance.ColGenus, "log2_fold_change", "p_value", "adjusted_p_value"}

// TopTable converts ranked results into a table; NaN becomes NA.
func TopTable(name string, rows []diffabund.Result) *dataset.Table {
	t := &dataset.Table{Name: name, Header: append([]string(nil), TopColumns...), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Genus,
			abundance.FormatValue(r.Log2FoldChange),
			abundance.FormatValue(r.P),
			abundance.FormatValue(r.AdjustedP),
		})
	}
	return t
}
