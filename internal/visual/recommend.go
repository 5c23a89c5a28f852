// Package visual recommends a chart for the current dataset and renders
// it. Recommendations are declarative; nothing is evaluated from text.
package visual

import (
	"errors"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

// ErrUnavailable is returned when no chart can be drawn for a dataset.
var ErrUnavailable = errors.New("visualization unavailable")

// Intent is the pair of columns the user last looked at; empty when unknown.
type Intent []string

// Mark is the chart type.
type Mark string

const (
	Scatter Mark = "scatter"
	Bar     Mark = "bar"
)

// ChartSpec describes a chart without drawing it.
type ChartSpec struct {
	Mark    Mark     `json:"mark"`
	X       string   `json:"x"`
	Y       string   `json:"y"`
	Color   string   `json:"color,omitempty"`
	Columns []string `json:"columns"`
}

// Result is a recommendation plus the conditions that prevent drawing it.
type Result struct {
	Spec          ChartSpec `json:"spec"`
	MissingValues bool      `json:"missing_values"`
	Unavailable   bool      `json:"unavailable"`
}

// Recommender picks charts. Identifier columns are never plotted.
type Recommender struct {
	Identifiers []string
}

func (r Recommender) ignored(name string) bool {
	if dataset.IsMarker(name) {
		return true
	}
	ids := r.Identifiers
	if ids == nil {
		ids = []string{"id"}
	}
	for _, id := range ids {
		if strings.EqualFold(id, name) {
			return true
		}
	}
	return false
}

func continuous(k dataset.Kind) bool { return k == dataset.Numeric || k == dataset.Datetime }

// Recommend chooses a chart for ds. The intent pair wins when both columns
// exist; otherwise the first two continuous columns make a scatter, or the
// first categorical and continuous columns make a bar chart. enhance names
// a marker column used for colour when present.
func (r Recommender) Recommend(ds *dataset.Dataset, intent Intent, enhance string) Result {
	spec, ok := r.fromIntent(ds, intent)
	if !ok {
		spec, ok = r.fallback(ds)
	}
	if !ok {
		return Result{Unavailable: true}
	}
	spec.Columns = []string{spec.X, spec.Y}
	if enhance != "" && ds.Has(enhance) {
		spec.Color = enhance
		spec.Columns = append(spec.Columns, enhance)
	}
	res := Result{Spec: spec}
	for _, name := range []string{spec.X, spec.Y} {
		if ds.Column(name).NullCount() > 0 {
			res.MissingValues = true
		}
	}
	return res
}

func (r Recommender) fromIntent(ds *dataset.Dataset, intent Intent) (ChartSpec, bool) {
	if len(intent) != 2 {
		return ChartSpec{}, false
	}
	a, b := ds.Column(intent[0]), ds.Column(intent[1])
	if a == nil || b == nil || r.ignored(a.Name) || r.ignored(b.Name) {
		return ChartSpec{}, false
	}
	switch {
	case continuous(a.Kind) && continuous(b.Kind):
		return ChartSpec{Mark: Scatter, X: a.Name, Y: b.Name}, true
	case continuous(b.Kind):
		return ChartSpec{Mark: Bar, X: a.Name, Y: b.Name}, true
	case continuous(a.Kind):
		return ChartSpec{Mark: Bar, X: b.Name, Y: a.Name}, true
	}
	return ChartSpec{}, false
}

func (r Recommender) fallback(ds *dataset.Dataset) (ChartSpec, bool) {
	var cont, cat []string
	for _, c := range ds.Columns {
		if r.ignored(c.Name) {
			continue
		}
		if continuous(c.Kind) {
			cont = append(cont, c.Name)
		} else {
			cat = append(cat, c.Name)
		}
	}
	switch {
	case len(cont) >= 2:
		return ChartSpec{Mark: Scatter, X: cont[0], Y: cont[1]}, true
	case len(cont) == 1 && len(cat) >= 1:
		return ChartSpec{Mark: Bar, X: cat[0], Y: cont[0]}, true
	}
	return ChartSpec{}, false
}

// ExtractIntent returns the column pair a chart was drawn from.
func ExtractIntent(spec ChartSpec) Intent {
	if spec.X == "" || spec.Y == "" {
		return nil
	}
	return Intent{spec.X, spec.Y}
}
