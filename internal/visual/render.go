package visual

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

const maxBars = 20

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func asFloat(c *dataset.Column, i int) (float64, bool) {
	v := c.Values[i]
	if !v.Valid {
		return 0, false
	}
	if c.Kind == dataset.Datetime {
		return chart.TimeToFloat64(v.T), true
	}
	return v.Num, true
}

// RenderPNG draws spec over ds as a PNG image.
func RenderPNG(ds *dataset.Dataset, spec ChartSpec, w io.Writer) error {
	x, y := ds.Column(spec.X), ds.Column(spec.Y)
	if x == nil || y == nil {
		return ErrUnavailable
	}
	switch spec.Mark {
	case Scatter:
		return renderScatter(ds, spec, x, y, w)
	case Bar:
		return renderBar(spec, x, y, w)
	}
	return ErrUnavailable
}

func renderScatter(ds *dataset.Dataset, spec ChartSpec, x, y *dataset.Column, w io.Writer) error {
	flags := ds.Flags(spec.Color)
	var plain, flagged [2][]float64
	for i := range x.Values {
		xv, ok1 := asFloat(x, i)
		yv, ok2 := asFloat(y, i)
		if !ok1 || !ok2 {
			continue
		}
		if flags != nil && flags[i] {
			flagged[0] = append(flagged[0], xv)
			flagged[1] = append(flagged[1], yv)
			continue
		}
		plain[0] = append(plain[0], xv)
		plain[1] = append(plain[1], yv)
	}
	var series []chart.Series
	add := func(name string, pts [2][]float64, col drawing.Color) {
		if len(pts[0]) == 0 {
			return
		}
		xs, ys := pts[0], pts[1]
		if len(xs) == 1 {
			// go-chart needs two x values to build a range
			xs = []float64{xs[0], xs[0] + 1}
			ys = []float64{ys[0], ys[0]}
		}
		series = append(series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: pointStyle(col)})
	}
	add("rows", plain, chart.ColorBlue)
	if spec.Color != "" {
		add(spec.Color, flagged, chart.ColorRed)
	}
	if len(series) == 0 {
		return ErrUnavailable
	}
	ch := chart.Chart{
		Title:      fmt.Sprintf("%s by %s", spec.Y, spec.X),
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 12}},
		XAxis:      chart.XAxis{Name: spec.X, Range: paddedRange(append(plain[0], flagged[0]...))},
		YAxis:      chart.YAxis{Name: spec.Y, Range: paddedRange(append(plain[1], flagged[1]...))},
		Series:     series,
	}
	if x.Kind == dataset.Datetime {
		ch.XAxis.ValueFormatter = chart.TimeDateValueFormatter
	}
	if spec.Color != "" {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	return nil
}

// paddedRange widens a flat range so the axis has a non-zero span. It
// returns nil to let go-chart derive the range itself.
func paddedRange(ys []float64) chart.Range {
	if len(ys) == 0 {
		return nil
	}
	lo, hi := ys[0], ys[0]
	for _, v := range ys[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi > lo {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

// renderBar plots the mean of y per category of x, in first-seen order.
func renderBar(spec ChartSpec, x, y *dataset.Column, w io.Writer) error {
	var order []string
	sums := map[string]float64{}
	counts := map[string]int{}
	for i := range x.Values {
		yv, ok := asFloat(y, i)
		if !ok {
			continue
		}
		label := x.Values[i].Format(x.Kind)
		if label == "" {
			label = "(missing)"
		}
		if _, seen := counts[label]; !seen {
			if len(order) == maxBars {
				continue
			}
			order = append(order, label)
		}
		sums[label] += yv
		counts[label]++
	}
	if len(order) == 0 {
		return ErrUnavailable
	}
	bars := make([]chart.Value, len(order))
	for i, label := range order {
		bars[i] = chart.Value{Label: label, Value: sums[label] / float64(counts[label])}
	}
	bc := chart.BarChart{
		Title:      fmt.Sprintf("mean %s by %s", spec.Y, spec.X),
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Height:     512,
		BarWidth:   40,
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar: %w", err)
	}
	return nil
}
