package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// xlsxRecords extracts the rows of one worksheet as text. sheetIndex is
// 1-based and only consulted when sheetName is empty.
func xlsxRecords(data []byte, sheetName string, sheetIndex int) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	book := &workbook{
		sheets: parseWorkbook(zipEntry(zr, "xl/workbook.xml")),
		rels:   parseRelationships(zipEntry(zr, "xl/_rels/workbook.xml.rels")),
	}
	target, err := book.resolve(sheetName, sheetIndex)
	if err != nil {
		return nil, err
	}
	sheetXML := zipEntry(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("worksheet %s missing from archive", target)
	}
	rr := newRowReader(sheetXML, parseSharedStrings(zipEntry(zr, "xl/sharedStrings.xml")))
	var out [][]string
	for {
		row, ok := rr.next()
		if !ok {
			break
		}
		out = append(out, row)
	}
	return out, nil
}

type sheetEntry struct {
	name string
	id   int
	rid  string
}

type workbook struct {
	sheets []sheetEntry
	rels   map[string]string
}

func (b *workbook) resolve(name string, index int) (string, error) {
	if name != "" {
		for _, s := range b.sheets {
			if strings.EqualFold(s.name, name) {
				if rel, ok := b.rels[s.rid]; ok {
					return relPath(rel), nil
				}
			}
		}
		avail := make([]string, len(b.sheets))
		for i, s := range b.sheets {
			avail[i] = s.name
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(avail, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range b.sheets {
		if s.id == index {
			if rel, ok := b.rels[s.rid]; ok {
				return relPath(rel), nil
			}
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

// relPath maps a relationship target onto its archive entry name.
func relPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

// walkXML feeds each token to fn until EOF or a decode error.
func walkXML(data []byte, fn func(xml.Token)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		fn(tok)
	}
}

func parseWorkbook(data []byte) []sheetEntry {
	var out []sheetEntry
	walkXML(data, func(tok xml.Token) {
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			return
		}
		var s sheetEntry
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id = leadingInt(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	walkXML(data, func(tok xml.Token) {
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func parseSharedStrings(data []byte) []string {
	var (
		out []string
		buf strings.Builder
		inT bool
	)
	walkXML(data, func(tok xml.Token) {
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	})
	return out
}

type rowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newRowReader(data []byte, shared []string) *rowReader {
	return &rowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// next returns the cells of the following <row>, padded to its widest cell.
func (r *rowReader) next() ([]string, bool) {
	var (
		row   []string
		inRow bool
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = row[:0]
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
			col := columnIndex(ref)
			if col < 0 {
				col = len(row)
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = r.cellValue(typ)
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

func (r *rowReader) cellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				val = r.text(se.Name.Local)
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			if typ == "s" {
				idx := leadingInt(val)
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx]
				}
				return ""
			}
			return val
		}
	}
}

func (r *rowReader) text(elem string) string {
	var sb strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return sb.String()
		}
		if end, ok := tok.(xml.EndElement); ok && end.Name.Local == elem {
			return sb.String()
		}
		if ch, ok := tok.(xml.CharData); ok {
			sb.Write(ch)
		}
	}
}

// columnIndex turns a cell reference such as "C12" into 2. A reference
// without letters gives -1.
func columnIndex(ref string) int {
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

func leadingInt(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
