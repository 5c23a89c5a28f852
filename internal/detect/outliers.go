package detect

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/isoforest"
)

// FallbackContamination replaces contamination values outside (0, 0.5].
const FallbackContamination = 0.2

// OutlierOptions configures TrainIsolationForest.
type OutlierOptions struct {
	Forest      isoforest.Options
	Identifiers []string // nil means DefaultIdentifiers
}

// OutlierResult is the outcome of one detection run.
type OutlierResult struct {
	Data          *dataset.Dataset // input plus a fresh outlier column
	Count         int
	Contamination float64 // value actually used, after clamping
	Scores        []float64
	Intent        []string // carried through unchanged
}

// ClampContamination maps out-of-range values onto FallbackContamination.
func ClampContamination(c float64) float64 {
	if math.IsNaN(c) || c <= 0 || c > 0.5 {
		return FallbackContamination
	}
	return c
}

// TrainIsolationForest fits a forest on the encoded features of ds and
// flags roughly a contamination share of rows as outliers.
func TrainIsolationForest(ds *dataset.Dataset, contamination float64, intent []string, opt OutlierOptions) (*OutlierResult, error) {
	c := ClampContamination(contamination)
	x, _, err := EncodeFeatures(ds, opt.Identifiers)
	if err != nil {
		return nil, err
	}
	if len(x) == 0 {
		out := ds.Drop(dataset.OutlierColumn)
		_ = out.SetColumn(&dataset.Column{Name: dataset.OutlierColumn, Kind: dataset.Bool})
		return &OutlierResult{Data: out, Contamination: c, Intent: intent}, nil
	}
	forest, err := isoforest.Fit(x, opt.Forest)
	if err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}
	scores, err := forest.Score(x)
	if err != nil {
		return nil, fmt.Errorf("score rows: %w", err)
	}
	flags := isoforest.Flag(scores, c)
	vals := make([]dataset.Value, len(flags))
	count := 0
	for i, f := range flags {
		vals[i] = dataset.BoolValue(f)
		if f {
			count++
		}
	}
	out := ds.Drop(dataset.OutlierColumn)
	if err := out.SetColumn(&dataset.Column{Name: dataset.OutlierColumn, Kind: dataset.Bool, Values: vals}); err != nil {
		return nil, err
	}
	return &OutlierResult{Data: out, Count: count, Contamination: c, Scores: scores, Intent: intent}, nil
}

// DropOutliers removes flagged rows and strips the outlier column.
func DropOutliers(ds *dataset.Dataset) *dataset.Dataset {
	return DropFlagged(ds, dataset.OutlierColumn)
}

// EncodeFeatures turns every non-marker, non-identifier column into a
// float feature. Datetimes become epoch seconds, bools 0/1, strings a
// stable label code. String columns whose header reads as a date are
// encoded as the year in their first four characters.
func EncodeFeatures(ds *dataset.Dataset, ids []string) ([][]float64, []string, error) {
	skip := identifierSet(ids)
	var (
		names []string
		cols  [][]float64
	)
	for _, c := range ds.Columns {
		if skip[c.Name] {
			continue
		}
		f, err := encodeColumn(c)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, c.Name)
		cols = append(cols, f)
	}
	if len(cols) == 0 {
		return nil, nil, &FeatureEncodingError{Reason: "no usable feature columns"}
	}
	x := make([][]float64, ds.Len())
	for i := range x {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		x[i] = row
	}
	return x, names, nil
}

// FeatureNulls names the feature columns whose missing values make
// EncodeFeatures fail. Label-encoded string columns tolerate nulls.
func FeatureNulls(ds *dataset.Dataset, ids []string) []string {
	skip := identifierSet(ids)
	var out []string
	for _, c := range ds.Columns {
		if skip[c.Name] || c.NullCount() == 0 {
			continue
		}
		if c.Kind == dataset.String && !dataset.LooksLikeDate(c.Name) {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func encodeColumn(c *dataset.Column) ([]float64, error) {
	out := make([]float64, len(c.Values))
	if c.Kind == dataset.String {
		if dataset.LooksLikeDate(c.Name) {
			return encodeYearPrefix(c)
		}
		return encodeLabels(c), nil
	}
	for i, v := range c.Values {
		if !v.Valid {
			return nil, &FeatureEncodingError{Column: c.Name, Reason: fmt.Sprintf("missing value in row %d", i)}
		}
		switch c.Kind {
		case dataset.Datetime:
			out[i] = float64(v.T.Unix())
		case dataset.Bool:
			if v.B {
				out[i] = 1
			}
		default:
			out[i] = v.Num
		}
	}
	return out, nil
}

func encodeYearPrefix(c *dataset.Column) ([]float64, error) {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		if !v.Valid || len(v.Str) < 4 {
			return nil, &FeatureEncodingError{Column: c.Name, Reason: fmt.Sprintf("row %d has no year prefix", i)}
		}
		y, err := strconv.Atoi(v.Str[:4])
		if err != nil {
			return nil, &FeatureEncodingError{Column: c.Name, Reason: fmt.Sprintf("row %d: %q is not a year", i, v.Str[:4])}
		}
		out[i] = float64(y)
	}
	return out, nil
}

// encodeLabels codes sorted distinct values 0..n-1; missing cells get n.
func encodeLabels(c *dataset.Column) []float64 {
	distinct := map[string]bool{}
	for _, v := range c.Values {
		if v.Valid {
			distinct[v.Str] = true
		}
	}
	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	code := make(map[string]float64, len(keys))
	for i, k := range keys {
		code[k] = float64(i)
	}
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		if v.Valid {
			out[i] = code[v.Str]
		} else {
			out[i] = float64(len(keys))
		}
	}
	return out
}
