package detect

import (
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

// Method selects the imputation strategy.
type Method string

const (
	MethodSimple Method = "simple"
	MethodKNN    Method = "KNN"
)

// ParseMethod maps user input onto a Method. Anything unrecognised is simple.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), string(MethodKNN)) {
		return MethodKNN
	}
	return MethodSimple
}

// DefaultNeighbors is the KNN donor count.
const DefaultNeighbors = 2

// Impute fills missing numeric cells and returns a new dataset. Non-numeric
// columns are left untouched. k only applies to MethodKNN; k <= 0 means
// DefaultNeighbors.
func Impute(ds *dataset.Dataset, method Method, k int) (*dataset.Dataset, error) {
	out := ds.Clone()
	var num []*dataset.Column
	for _, c := range out.Columns {
		if c.Kind == dataset.Numeric && !dataset.IsMarker(c.Name) {
			num = append(num, c)
		}
	}
	means := make([]float64, len(num))
	for j, c := range num {
		vals := c.Floats()
		if len(vals) == 0 && len(c.Values) > 0 {
			return nil, &DataError{Column: c.Name, Reason: "no present values to impute from"}
		}
		means[j] = mean(vals)
	}
	if method == MethodKNN {
		if k <= 0 {
			k = DefaultNeighbors
		}
		imputeKNN(num, means, k)
		return out, nil
	}
	for j, c := range num {
		for i, v := range c.Values {
			if !v.Valid {
				c.Values[i] = dataset.NumberValue(means[j])
			}
		}
	}
	return out, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// imputeKNN fills each gap with the mean of its k nearest donors under the
// NaN-aware euclidean distance. Distances use the data as given, never the
// partially imputed result. Donors at undefined distance carry no weight;
// a row with no usable donor takes the column mean.
func imputeKNN(cols []*dataset.Column, means []float64, k int) {
	if len(cols) == 0 {
		return
	}
	n := len(cols[0].Values)
	orig := make([][]dataset.Value, len(cols))
	for j, c := range cols {
		orig[j] = append([]dataset.Value(nil), c.Values...)
	}
	type donor struct {
		row  int
		dist float64
	}
	for j, c := range cols {
		for r := 0; r < n; r++ {
			if orig[j][r].Valid {
				continue
			}
			var donors []donor
			for d := 0; d < n; d++ {
				if d == r || !orig[j][d].Valid {
					continue
				}
				donors = append(donors, donor{row: d, dist: nanEuclidean(orig, r, d)})
			}
			sort.SliceStable(donors, func(a, b int) bool {
				da, db := donors[a].dist, donors[b].dist
				if math.IsNaN(db) {
					return !math.IsNaN(da)
				}
				return da < db
			})
			if len(donors) > k {
				donors = donors[:k]
			}
			var sum, weight float64
			for _, dn := range donors {
				if math.IsNaN(dn.dist) {
					continue
				}
				sum += orig[j][dn.row].Num
				weight++
			}
			if weight == 0 {
				c.Values[r] = dataset.NumberValue(means[j])
				continue
			}
			c.Values[r] = dataset.NumberValue(sum / weight)
		}
	}
}

// nanEuclidean is the euclidean distance over coordinates present in both
// rows, scaled up by total/present. It is NaN when no coordinate is shared.
func nanEuclidean(cols [][]dataset.Value, a, b int) float64 {
	var sq float64
	present := 0
	for _, col := range cols {
		va, vb := col[a], col[b]
		if !va.Valid || !vb.Valid {
			continue
		}
		d := va.Num - vb.Num
		sq += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(cols)) / float64(present) * sq)
}
