// Package ingest turns uploaded CSV, TSV and XLSX files into typed datasets.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

var (
	// ErrEmptyInput is returned when a file has no header row.
	ErrEmptyInput = errors.New("input has no header row")
	// ErrUnsupportedFormat is returned for extensions other than csv, tsv, txt and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Options controls parsing and type inference.
type Options struct {
	Delimiter     rune // 0 = sniff from extension
	Number        dataset.NumberFormat
	DatetimeRatio float64 // share of parseable values needed for a datetime column
	SheetName     string
	SheetIndex    int // 1-based
}

// DefaultOptions returns the options used by the CLI and server.
func DefaultOptions() Options {
	return Options{DatetimeRatio: 0.9, SheetIndex: 1}
}

// ReadFile loads path, picking the reader from its extension.
func ReadFile(path string, opt Options) (*dataset.Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ReadBytes(filepath.Base(path), b, opt)
}

// ReadBytes parses an uploaded file body. name is only used for its extension.
func ReadBytes(name string, data []byte, opt Options) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		recs, err := xlsxRecords(data, opt.SheetName, opt.SheetIndex)
		if err != nil {
			return nil, err
		}
		return fromRecords(recs, opt)
	case ".csv", ".tsv", ".txt", "":
		if opt.Delimiter == 0 {
			opt.Delimiter = sniffDelimiter(name)
		}
		return ReadCSV(bytes.NewReader(data), opt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadXLSX loads one worksheet of an xlsx workbook.
func ReadXLSX(path, sheetName string, sheetIndex int, opt Options) (*dataset.Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	recs, err := xlsxRecords(b, sheetName, sheetIndex)
	if err != nil {
		return nil, err
	}
	return fromRecords(recs, opt)
}

// ReadCSV parses delimited text with a header row.
func ReadCSV(r io.Reader, opt Options) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(recs, opt)
}

func sniffDelimiter(name string) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	return ','
}

func fromRecords(recs [][]string, opt Options) (*dataset.Dataset, error) {
	if len(recs) == 0 || len(recs[0]) == 0 {
		return nil, ErrEmptyInput
	}
	names := NormalizeNames(recs[0])
	body := recs[1:]
	ratio := opt.DatetimeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}
	cols := make([]*dataset.Column, 0, len(names))
	for j, name := range names {
		if j == 0 && name == "unnamed_0" {
			continue
		}
		raw := make([]string, len(body))
		for i, row := range body {
			if j < len(row) {
				raw[i] = row[j]
			}
		}
		cols = append(cols, inferColumn(name, raw, opt.Number, ratio))
	}
	ds, err := dataset.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}
