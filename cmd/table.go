package cmd

import (
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/genusdiff/internal/dataset"
)

var (
	sheetName  string
	sheetIndex int
)

// loadTable reads any supported table; for workbooks the --sheet-name and
// --sheet-index flags choose the worksheet.
func loadTable(path string) (*dataset.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return dataset.LoadXLSX(path, sheetName, sheetIndex)
	}
	return dataset.Load(path)
}
