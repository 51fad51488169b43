package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".xlsx")
}

func (xlsxLoader) Load(p string) (*Table, error) {
	return LoadXLSX(p, "", 1)
}

// LoadXLSX reads one worksheet of a workbook into a Table. The sheet is chosen
// by name when sheetName is set, otherwise by 1-based sheetIndex.
func LoadXLSX(p string, sheetName string, sheetIndex int) (*Table, error) {
	name := filepath.Base(p)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", name, err)
	}
	book := xlsxBook{zr: zr}
	target, err := book.sheetPath(sheetName, sheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	data := book.file(target)
	if data == nil {
		return nil, fmt.Errorf("%s: worksheet %s not found", name, target)
	}
	rr := &sheetRows{dec: xml.NewDecoder(bytes.NewReader(data)), shared: book.sharedStrings()}
	header, ok := rr.next()
	if !ok || len(header) == 0 {
		return nil, fmt.Errorf("%s: empty sheet, header row required", name)
	}
	t := &Table{Name: name, Header: header}
	for {
		row, ok := rr.next()
		if !ok {
			break
		}
		if len(row) > len(header) {
			row = row[:len(header)]
		}
		t.Rows = append(t.Rows, pad(row, len(header)))
	}
	return t, nil
}

type xlsxBook struct {
	zr *zip.Reader
}

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		ID   int    `xml:"sheetId,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type relsXML struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// sstXML holds shared strings; rich-text items keep their runs in R.
type sstXML struct {
	Items []struct {
		T string `xml:"t"`
		R []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

func (b xlsxBook) file(name string) []byte {
	for _, f := range b.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		return data
	}
	return nil
}

func (b xlsxBook) decode(name string, v any) bool {
	data := b.file(name)
	return len(data) > 0 && xml.Unmarshal(data, v) == nil
}

func (b xlsxBook) sheetPath(sheetName string, sheetIndex int) (string, error) {
	var wb workbookXML
	var rels relsXML
	b.decode("xl/workbook.xml", &wb)
	b.decode("xl/_rels/workbook.xml.rels", &rels)
	target := func(rid string) (string, bool) {
		for _, r := range rels.Rels {
			if r.ID == rid && r.Target != "" {
				return normalizeRelPath(r.Target), true
			}
		}
		return "", false
	}

	if sheetName != "" {
		names := make([]string, 0, len(wb.Sheets))
		for _, s := range wb.Sheets {
			if strings.EqualFold(s.Name, sheetName) {
				if t, ok := target(s.RID); ok {
					return t, nil
				}
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", sheetName, strings.Join(names, ", "))
	}
	if sheetIndex <= 0 {
		sheetIndex = 1
	}
	for _, s := range wb.Sheets {
		if s.ID != sheetIndex {
			continue
		}
		if t, ok := target(s.RID); ok {
			return t, nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", sheetIndex)), nil
}

func (b xlsxBook) sharedStrings() []string {
	var sst sstXML
	if !b.decode("xl/sharedStrings.xml", &sst) {
		return nil
	}
	out := make([]string, len(sst.Items))
	for i, it := range sst.Items {
		if len(it.R) == 0 {
			out[i] = it.T
			continue
		}
		var sb strings.Builder
		for _, r := range it.R {
			sb.WriteString(r.T)
		}
		out[i] = sb.String()
	}
	return out
}

type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

// next returns the following <row>, with cells placed by their A1 reference.
func (r *sheetRows) next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			col := colIndexFromRef(ref)
			if col < 0 {
				col = len(row)
			}
			val, err := r.cellValue(typ)
			if err != nil {
				return nil, false
			}
			if len(row) <= col {
				row = pad(row, col+1)
			}
			row[col] = val
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

var errCellEOF = errors.New("unterminated cell")

// cellValue consumes tokens through </c>, returning <v> or inline <t> text.
func (r *sheetRows) cellValue(typ string) (string, error) {
	var val strings.Builder
	inVal := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", errCellEOF
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inVal = true
			}
		case xml.CharData:
			if inVal {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				inVal = false
			case "c":
				s := val.String()
				if typ == "s" {
					idx, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || idx < 0 || idx >= len(r.shared) {
						return "", nil
					}
					return r.shared[idx], nil
				}
				return s, nil
			}
		}
	}
}

// colIndexFromRef converts "C12" to 2. It returns -1 without a column part.
func colIndexFromRef(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}

// normalizeRelPath converts relationship targets to ZIP entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
