// Package detect holds the data-quality detectors: missing values,
// duplicates and isolation-forest outliers, plus the imputer and the
// contamination controller.
package detect

import "github.com/KaramelBytes/cleanloom/internal/dataset"

// ColumnCount is the number of missing cells in one column.
type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// MissingReport lists missing counts for every column in dataset order.
type MissingReport []ColumnCount

// Total sums the per-column counts.
func (r MissingReport) Total() int {
	n := 0
	for _, c := range r {
		n += c.Count
	}
	return n
}

// DetectMissing counts missing cells per column.
func DetectMissing(ds *dataset.Dataset) (MissingReport, int) {
	rep := make(MissingReport, 0, ds.Width())
	for _, c := range ds.Columns {
		rep = append(rep, ColumnCount{Column: c.Name, Count: c.NullCount()})
	}
	return rep, rep.Total()
}

func rowHasNull(ds *dataset.Dataset, i int) bool {
	for _, c := range ds.Columns {
		if !c.Values[i].Valid {
			return true
		}
	}
	return false
}

// MissingRows returns the rows that have at least one missing cell.
func MissingRows(ds *dataset.Dataset) *dataset.Dataset {
	return ds.Filter(func(i int) bool { return rowHasNull(ds, i) })
}

// DropMissing returns only the complete rows.
func DropMissing(ds *dataset.Dataset) *dataset.Dataset {
	return ds.Filter(func(i int) bool { return !rowHasNull(ds, i) })
}
