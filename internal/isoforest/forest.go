// Package isoforest implements an isolation forest for unsupervised
// outlier scoring of dense float feature matrices.
package isoforest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649

// Options configures forest construction. Trees and SampleSize fall back
// to their defaults when not positive.
type Options struct {
	Trees      int   // number of trees, default 100
	SampleSize int   // rows per tree, default 256 (capped at the row count)
	Seed       int64 // random seed; zero is a valid seed, not "unset"
}

// DefaultOptions returns 100 trees, 256 samples per tree and seed 42.
func DefaultOptions() Options {
	return Options{Trees: 100, SampleSize: 256, Seed: 42}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Trees <= 0 {
		o.Trees = d.Trees
	}
	if o.SampleSize <= 0 {
		o.SampleSize = d.SampleSize
	}
	return o
}

var (
	// ErrNoRows is returned when fitting an empty matrix.
	ErrNoRows = errors.New("isoforest: no rows to fit")
	// ErrRagged is returned when rows differ in width.
	ErrRagged = errors.New("isoforest: rows have different widths")
)

type node struct {
	feature     int
	split       float64
	left, right *node
	size        int // rows reaching a leaf
}

func (n *node) leaf() bool { return n.left == nil }

// Forest is a fitted isolation forest.
type Forest struct {
	trees      []*node
	sampleSize int
	width      int
}

// Fit grows a forest over x, one row per observation.
func Fit(x [][]float64, opt Options) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrNoRows
	}
	width := len(x[0])
	for _, row := range x {
		if len(row) != width {
			return nil, ErrRagged
		}
	}
	opt = opt.withDefaults()
	psi := opt.SampleSize
	if psi > len(x) {
		psi = len(x)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))
	rng := rand.New(rand.NewSource(opt.Seed))
	f := &Forest{sampleSize: psi, width: width, trees: make([]*node, opt.Trees)}
	for t := range f.trees {
		idx := rng.Perm(len(x))[:psi]
		f.trees[t] = grow(x, idx, 0, maxDepth, rng)
	}
	return f, nil
}

func grow(x [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *node {
	if depth >= maxDepth || len(idx) <= 1 {
		return &node{size: len(idx)}
	}
	// candidate features with spread in this partition
	var cand []int
	lo := make([]float64, len(x[0]))
	hi := make([]float64, len(x[0]))
	for f := range lo {
		lo[f], hi[f] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := x[i][f]
			if v < lo[f] {
				lo[f] = v
			}
			if v > hi[f] {
				hi[f] = v
			}
		}
		if hi[f] > lo[f] {
			cand = append(cand, f)
		}
	}
	if len(cand) == 0 {
		return &node{size: len(idx)}
	}
	f := cand[rng.Intn(len(cand))]
	split := lo[f] + rng.Float64()*(hi[f]-lo[f])
	var left, right []int
	for _, i := range idx {
		if x[i][f] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{size: len(idx)}
	}
	return &node{
		feature: f,
		split:   split,
		left:    grow(x, left, depth+1, maxDepth, rng),
		right:   grow(x, right, depth+1, maxDepth, rng),
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// search in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func pathLength(n *node, row []float64, depth int) float64 {
	for !n.leaf() {
		if row[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// Score returns the anomaly score of every row in (0, 1]; higher is more
// anomalous.
func (f *Forest) Score(x [][]float64) ([]float64, error) {
	norm := averagePathLength(f.sampleSize)
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != f.width {
			return nil, ErrRagged
		}
		var sum float64
		for _, t := range f.trees {
			sum += pathLength(t, row, 0)
		}
		mean := sum / float64(len(f.trees))
		if norm == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = math.Pow(2, -mean/norm)
	}
	return out, nil
}

// Threshold returns the score above which a row is an outlier so that
// roughly a contamination share of scores exceeds it. The cut is the
// (1-contamination) percentile with linear interpolation.
func Threshold(scores []float64, contamination float64) float64 {
	if len(scores) == 0 {
		return math.Inf(1)
	}
	s := append([]float64(nil), scores...)
	sort.Float64s(s)
	q := 1 - contamination
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(s) {
		hi = len(s) - 1
	}
	frac := pos - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

// Flag marks rows whose score is strictly above the contamination threshold.
func Flag(scores []float64, contamination float64) []bool {
	thr := Threshold(scores, contamination)
	out := make([]bool, len(scores))
	for i, s := range scores {
		out[i] = s > thr
	}
	return out
}
