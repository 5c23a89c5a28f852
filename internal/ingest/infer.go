package ingest

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

var nullTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true,
}

func isNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizeNames lowercases headers, maps spaces and dashes to underscores
// and strips everything outside [a-z0-9_]. Empty headers become unnamed_<i>;
// repeated names get a numeric suffix.
func NormalizeNames(headers []string) []string {
	out := make([]string, len(headers))
	seen := map[string]int{}
	for i, h := range headers {
		var b strings.Builder
		for _, r := range strings.ToLower(strings.TrimSpace(h)) {
			switch {
			case r == ' ' || r == '-':
				b.WriteRune('_')
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
				b.WriteRune(r)
			}
		}
		name := b.String()
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, n)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// inferColumn picks the narrowest kind that fits every present value:
// bool, then numeric, then datetime (ratio of parseable values), else string.
// A column with no present values is numeric.
func inferColumn(name string, raw []string, nf dataset.NumberFormat, ratio float64) *dataset.Column {
	present := 0
	allBool, allNum := true, true
	dates := 0
	for _, s := range raw {
		if isNullToken(s) {
			continue
		}
		present++
		v := strings.ToLower(strings.TrimSpace(s))
		if v != "true" && v != "false" {
			allBool = false
		}
		if allNum {
			if _, ok := dataset.ParseNumber(s, nf); !ok {
				allNum = false
			}
		}
		if _, ok := dataset.ParseTime(s); ok {
			dates++
		}
	}
	col := &dataset.Column{Name: name, Values: make([]dataset.Value, len(raw))}
	switch {
	case present == 0 || (allNum && !allBool):
		col.Kind = dataset.Numeric
		for i, s := range raw {
			if isNullToken(s) {
				continue
			}
			if f, ok := dataset.ParseNumber(s, nf); ok {
				col.Values[i] = dataset.NumberValue(f)
			}
		}
	case allBool:
		col.Kind = dataset.Bool
		for i, s := range raw {
			if !isNullToken(s) {
				col.Values[i] = dataset.BoolValue(strings.EqualFold(strings.TrimSpace(s), "true"))
			}
		}
	case float64(dates)/float64(present) >= ratio:
		col.Kind = dataset.Datetime
		for i, s := range raw {
			if isNullToken(s) {
				continue
			}
			if t, ok := dataset.ParseTime(s); ok {
				col.Values[i] = dataset.TimeValue(t)
			}
		}
	default:
		col.Kind = dataset.String
		for i, s := range raw {
			if !isNullToken(s) {
				col.Values[i] = dataset.StringValue(strings.TrimSpace(s))
			}
		}
	}
	return col
}
