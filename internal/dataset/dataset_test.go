package dataset

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadTSVPadsShortRows(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "genera.counts.tsv")
	content := "Sample\tg__Dorea\tg__Blautia\n" +
		"S1\t10\t5\n" +
		"S2\t3\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Name != "genera.counts.tsv" {
		t.Fatalf("name = %q", tbl.Name)
	}
	if len(tbl.Rows) != 2 || len(tbl.Rows[1]) != 3 || tbl.Rows[1][2] != "" {
		t.Fatalf("rows = %#v", tbl.Rows)
	}
	if !IsMissing(tbl.Rows[1][2]) || !IsMissing(" NA ") || IsMissing("0") {
		t.Fatalf("IsMissing mismatch")
	}
}

func TestLoadCSVAndSelect(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "metadata.csv")
	content := "Sample,Age,Study.Group\nS1,40,UC\nS2,33,nonIBD\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sel, err := tbl.Select("Sample", "Study.Group")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if strings.Join(sel.Header, ",") != "Sample,Study.Group" || sel.Rows[1][1] != "nonIBD" {
		t.Fatalf("unexpected selection: %#v", sel)
	}
	if _, err := tbl.Select("Missing"); err == nil {
		t.Fatalf("expected error for missing column")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "absent.tsv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	p := filepath.Join(dir, "data.json")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	empty := filepath.Join(dir, "empty.tsv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(empty); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.tsv")
	in := &Table{Name: "out.tsv", Header: []string{"Sample", "Count"}, Rows: [][]string{{"S1", "1"}, {"S2", "NA"}}}
	if err := Save(in, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[1][1] != "NA" {
		t.Fatalf("round trip rows = %#v", got.Rows)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestLoadXLSXByNameAndIndex(t *testing.T) {
	p := writeWorkbook(t)
	byName, err := LoadXLSX(p, "counts", 0)
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if strings.Join(byName.Header, "|") != "Sample|g__Dorea|g__Blautia" {
		t.Fatalf("header = %#v", byName.Header)
	}
	if len(byName.Rows) != 2 || byName.Rows[0][1] != "12" || byName.Rows[1][2] != "" {
		t.Fatalf("rows = %#v", byName.Rows)
	}
	byIndex, err := Load(p)
	if err != nil {
		t.Fatalf("by index: %v", err)
	}
	if byIndex.Rows[1][0] != "S2" {
		t.Fatalf("rows = %#v", byIndex.Rows)
	}
	if _, err := LoadXLSX(p, "nope", 0); err == nil || !strings.Contains(err.Error(), "available: counts") {
		t.Fatalf("expected sheet-not-found error, got %v", err)
	}
}

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.in); got != tt.want {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// writeWorkbook builds a minimal single-sheet workbook. The second data row
// skips column C to exercise reference-based cell placement.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?><workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="counts" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?><Relationships><Relationship Id="rId1" Target="/xl/worksheets/sheet1.xml"/></Relationships>`,
		"xl/sharedStrings.xml":       `<?xml version="1.0"?><sst><si><t>Sample</t></si><si><t>g__Dorea</t></si><si><t>g__Blautia</t></si><si><t>S1</t></si><si><t>S2</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c></row>` +
			`<row r="2"><c r="A2" t="s"><v>3</v></c><c r="B2"><v>12</v></c><c r="C2"><v>4</v></c></row>` +
			`<row r="3"><c r="A3" t="s"><v>4</v></c><c r="B3"><v>7</v></c></row>` +
			`</sheetData></worksheet>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	p := filepath.Join(t.TempDir(), "counts.xlsx")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return p
}
