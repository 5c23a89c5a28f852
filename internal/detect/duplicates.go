package detect

import (
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

// DuplicateMode decides which members of a duplicate group are flagged.
type DuplicateMode int

const (
	// KeepFirst flags every occurrence after the first.
	KeepFirst DuplicateMode = iota
	// MarkAll flags every member of a group with more than one row.
	MarkAll
)

// DefaultIdentifiers are columns that never take part in content comparison.
var DefaultIdentifiers = []string{"id"}

func identifierSet(ids []string) map[string]bool {
	if ids == nil {
		ids = DefaultIdentifiers
	}
	skip := make(map[string]bool, len(ids)+len(dataset.MarkerColumns))
	for _, id := range ids {
		skip[strings.ToLower(id)] = true
	}
	for _, m := range dataset.MarkerColumns {
		skip[m] = true
	}
	return skip
}

// DetectDuplicates returns a copy of ds with a fresh duplicate column and
// the number of flagged rows. Identifier and marker columns are ignored
// when comparing rows. A nil ids slice means DefaultIdentifiers.
func DetectDuplicates(ds *dataset.Dataset, mode DuplicateMode, ids []string) (*dataset.Dataset, int) {
	skip := identifierSet(ids)
	n := ds.Len()
	keys := make([]string, n)
	groups := make(map[string]int, n)
	for i := 0; i < n; i++ {
		keys[i] = ds.RowKey(i, skip)
		groups[keys[i]]++
	}
	seen := make(map[string]bool, n)
	flags := make([]dataset.Value, n)
	count := 0
	for i, k := range keys {
		var dup bool
		switch mode {
		case MarkAll:
			dup = groups[k] > 1
		default:
			dup = seen[k]
			seen[k] = true
		}
		if dup {
			count++
		}
		flags[i] = dataset.BoolValue(dup)
	}
	out := ds.Drop(dataset.DuplicateColumn)
	_ = out.SetColumn(&dataset.Column{Name: dataset.DuplicateColumn, Kind: dataset.Bool, Values: flags})
	return out, count
}

// HighlightDuplicates returns every row that belongs to a duplicate group,
// ordered so that group members sit next to each other.
func HighlightDuplicates(ds *dataset.Dataset, ids []string) *dataset.Dataset {
	marked, _ := DetectDuplicates(ds, MarkAll, ids)
	flags := marked.Flags(dataset.DuplicateColumn)
	rows := marked.Filter(func(i int) bool { return flags[i] })
	skip := identifierSet(ids)
	var by []string
	for _, name := range rows.Names() {
		if skip[name] {
			continue
		}
		by = append(by, name)
		if len(by) == 3 {
			break
		}
	}
	return rows.SortStable(by...)
}

// DropFlagged removes rows whose marker column is true and strips the marker.
func DropFlagged(ds *dataset.Dataset, marker string) *dataset.Dataset {
	flags := ds.Flags(marker)
	if flags == nil {
		return ds.Clone()
	}
	return ds.Filter(func(i int) bool { return !flags[i] }).Drop(marker)
}

// DropDuplicates removes repeated rows, keeping the first of each group.
func DropDuplicates(ds *dataset.Dataset, ids []string) *dataset.Dataset {
	marked, _ := DetectDuplicates(ds, KeepFirst, ids)
	return DropFlagged(marked, dataset.DuplicateColumn)
}
