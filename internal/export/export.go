// Package export writes a cleaned dataset and its action log to disk.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/utils"
)

// Downloadable returns ds without the marker columns added during cleaning.
func Downloadable(ds *dataset.Dataset) *dataset.Dataset {
	return ds.Drop(dataset.MarkerColumns...)
}

// CleanFilename derives the export name from the uploaded file name:
// "corrupted" becomes "clean", otherwise "_clean" is appended.
func CleanFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return "data.csv"
	}
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.Contains(base, "corrupted") {
		base = strings.ReplaceAll(base, "corrupted", "clean")
	} else {
		base += "_clean"
	}
	return base + ".csv"
}

// LogFilename is the action log name that accompanies a cleaned file.
func LogFilename(cleanName string) string {
	return strings.TrimSuffix(cleanName, filepath.Ext(cleanName)) + "_log.txt"
}

// WriteCSV writes a header row followed by every row; nulls are empty.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < ds.Len(); i++ {
		if err := cw.Write(ds.Row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Bundle lists the files produced by WriteBundle.
type Bundle struct {
	DataPath string
	LogPath  string
	Rows     int
}

// WriteBundle writes the downloadable dataset as dir/name and the log text
// next to it. name is the export name, usually from CleanFilename.
func WriteBundle(dir, name string, ds *dataset.Dataset, logText string) (*Bundle, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	clean := Downloadable(ds)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, clean); err != nil {
		return nil, err
	}
	if name == "" {
		name = CleanFilename("")
	}
	b := &Bundle{
		DataPath: filepath.Join(dir, name),
		LogPath:  filepath.Join(dir, LogFilename(name)),
		Rows:     clean.Len(),
	}
	if err := utils.SafeWriteFile(b.DataPath, buf.Bytes()); err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(b.LogPath, []byte(logText)); err != nil {
		return nil, err
	}
	return b, nil
}
