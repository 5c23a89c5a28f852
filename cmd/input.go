package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/ingest"
)

// readerFlags are the parsing flags shared by inspect and run.
type readerFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
}

func (f readerFlags) options(base ingest.Options) (ingest.Options, error) {
	opt := base
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.Number.DecimalSeparator = ','
	case ".", "dot":
		opt.Number.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.Number.ThousandsSeparator = ','
	case ".":
		opt.Number.ThousandsSeparator = '.'
	case "space", " ":
		opt.Number.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	opt.SheetName = f.sheetName
	if f.sheetIndex > 0 {
		opt.SheetIndex = f.sheetIndex
	}
	return opt, nil
}

// loadInput reads arg as a file, or as a preset name when no such file
// exists. It returns the dataset and the name used for export naming.
func loadInput(arg, presetsDir string, opt ingest.Options) (*dataset.Dataset, string, error) {
	if _, err := os.Stat(arg); err == nil {
		ds, err := ingest.ReadFile(arg, opt)
		if err != nil {
			return nil, "", err
		}
		return ds, arg, nil
	}
	if _, ok := ingest.LookupPreset(arg); ok {
		return ingest.Preset(presetsDir, arg, opt)
	}
	return nil, "", fmt.Errorf("%s: no such file or preset", arg)
}
