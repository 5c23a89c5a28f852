package detect

import "math"

// Contamination controller bounds.
const (
	DefaultContamination = 0.15
	MaxContamination     = 0.5
	MinContamination     = 0.01
)

// DetermineContamination proposes the next contamination value from the
// history of values already tried. It never modifies history.
func DetermineContamination(history []float64, more bool) float64 {
	c := DefaultContamination
	if len(history) > 0 {
		last := history[len(history)-1]
		if more {
			c = math.Min(last*1.4, MaxContamination)
		} else {
			c = math.Max(last*0.6, MinContamination)
		}
	}
	return math.Round(c*1e4) / 1e4
}
