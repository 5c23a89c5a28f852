// Package analysis profiles a dataset before cleaning: schema, per-column
// statistics and what each detector would report on the raw upload.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
	"github.com/KaramelBytes/cleanloom/internal/isoforest"
)

// Options controls profiling.
type Options struct {
	// SampleRows determines how many leading rows to include in the report.
	SampleRows int
	// TopValues caps the categories listed per text column.
	TopValues int
	// Identifiers are skipped by the duplicate and outlier detectors.
	Identifiers []string
	// Contamination is used for the outlier preview; 0 uses the controller default.
	Contamination float64
	Forest        isoforest.Options
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows: 5,
		TopValues:  5,
		Forest:     isoforest.DefaultOptions(),
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name     string          `json:"name"`
	Rows     int             `json:"rows"`
	Cols     []ColumnSummary `json:"columns"`
	Samples  [][]string      `json:"samples,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`

	Missing       int     `json:"missing"`
	MissingRows   int     `json:"missing_rows"`
	Duplicates    int     `json:"duplicates"`
	Outliers      int     `json:"outliers"`
	Contamination float64 `json:"contamination"`
}

// ColumnSummary captures the inferred type and statistics of one column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Numeric stats
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	Median float64 `json:"median,omitempty"`
	Std    float64 `json:"std,omitempty"`
	// Datetime span
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	// Categorical top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Profile summarises ds. Detector failures become warnings rather than
// errors so a dirty upload can still be inspected.
func Profile(name string, ds *dataset.Dataset, opt Options) *Report {
	if opt.SampleRows < 0 {
		opt.SampleRows = 0
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 5
	}
	r := &Report{Name: name, Rows: ds.Len()}
	for _, c := range ds.Columns {
		r.Cols = append(r.Cols, summarize(c, opt.TopValues))
	}
	for i := 0; i < min(opt.SampleRows, ds.Len()); i++ {
		r.Samples = append(r.Samples, ds.Row(i))
	}

	_, r.Missing = detect.DetectMissing(ds)
	r.MissingRows = detect.MissingRows(ds).Len()
	_, r.Duplicates = detect.DetectDuplicates(ds, detect.KeepFirst, opt.Identifiers)

	r.Contamination = opt.Contamination
	if r.Contamination == 0 {
		r.Contamination = detect.DetermineContamination(nil, true)
	}
	base := ds
	if r.Missing > 0 {
		base = detect.DropMissing(ds)
		r.Warnings = append(r.Warnings, fmt.Sprintf("outlier preview skips %d rows with missing values", r.MissingRows))
	}
	res, err := detect.TrainIsolationForest(base, r.Contamination, nil, detect.OutlierOptions{Forest: opt.Forest, Identifiers: opt.Identifiers})
	if err != nil {
		r.Warnings = append(r.Warnings, "outlier preview unavailable: "+err.Error())
	} else {
		r.Outliers = res.Count
		r.Contamination = res.Contamination
	}
	for _, c := range r.Cols {
		if c.NonNull == 0 && r.Rows > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("column %s has no values; imputation will fail", c.Name))
		}
	}
	return r
}

func summarize(c *dataset.Column, top int) ColumnSummary {
	s := ColumnSummary{Name: c.Name, Kind: c.Kind.String()}
	s.Missing = c.NullCount()
	s.NonNull = len(c.Values) - s.Missing

	counts := map[string]int{}
	for _, v := range c.Values {
		if v.Valid {
			counts[v.Format(c.Kind)]++
		}
	}
	s.Unique = len(counts)

	switch c.Kind {
	case dataset.Numeric:
		vals := c.Floats()
		if len(vals) == 0 {
			break
		}
		sr := series.New(vals, series.Float, c.Name)
		s.Min, s.Max = sr.Min(), sr.Max()
		s.Mean, s.Median = sr.Mean(), sr.Median()
		if len(vals) > 1 {
			s.Std = sr.StdDev()
		}
		if math.IsNaN(s.Std) {
			s.Std = 0
		}
	case dataset.Datetime:
		for _, v := range c.Values {
			if !v.Valid {
				continue
			}
			f := v.Format(c.Kind)
			if s.First == "" || f < s.First {
				s.First = f
			}
			if f > s.Last {
				s.Last = f
			}
		}
	default:
		s.TopValues = topValues(counts, top)
	}
	return s
}

func topValues(counts map[string]int, n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, CategoryCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Markdown renders a compact report for the terminal or a standalone doc.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch {
		case c.Kind == dataset.Numeric.String() && c.NonNull > 0:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std))
		case c.Kind == dataset.Datetime.String() && c.First != "":
			b.WriteString(fmt.Sprintf(": %s to %s", c.First, c.Last))
		case len(c.TopValues) > 0:
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[FINDINGS]\n")
	b.WriteString(fmt.Sprintf("- %d missing values were detected (%d rows affected)\n", r.Missing, r.MissingRows))
	b.WriteString(fmt.Sprintf("- %d duplicated rows were detected\n", r.Duplicates))
	b.WriteString(fmt.Sprintf("- %d outlier values were detected at contamination %.4g\n", r.Outliers, r.Contamination))

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
