package detect

import "github.com/KaramelBytes/cleanloom/internal/dataset"

// Dirtiness scores current against the dataset it was cleaned from:
// duplicates, numeric cells outside the original column range and missing
// cells, normalised by row count. 0 is clean; there is no upper bound.
func Dirtiness(original, current *dataset.Dataset, ids []string) float64 {
	if current.Len() == 0 {
		return 0
	}
	base := current.Drop(dataset.MarkerColumns...)
	_, dups := DetectDuplicates(base, KeepFirst, ids)
	_, missing := DetectMissing(base)
	return float64(dups+rangeViolations(original, base, ids)+missing) / float64(base.Len())
}

func rangeViolations(original, current *dataset.Dataset, ids []string) int {
	skip := identifierSet(ids)
	n := 0
	for _, oc := range original.Columns {
		if oc.Kind != dataset.Numeric || skip[oc.Name] {
			continue
		}
		cc := current.Column(oc.Name)
		if cc == nil || cc.Kind != dataset.Numeric {
			continue
		}
		vals := oc.Floats()
		if len(vals) == 0 {
			continue
		}
		lo, hi := vals[0], vals[0]
		for _, v := range vals[1:] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		for _, v := range cc.Values {
			if v.Valid && (v.Num < lo || v.Num > hi) {
				n++
			}
		}
	}
	return n
}
