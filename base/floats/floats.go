package floats

import (
	"math"
	"slices"
)

func midpoint(x, y float64) float64 {
	return x + (y-x)/2.0
}

func Median(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	fs = slices.Clone(fs)
	slices.Sort(fs)
	i := n / 2
	if n%2 != 0 {
		return fs[i]
	}
	return midpoint(fs[i-1], fs[i])
}

func Clamp(x, lo, hi float64) float64 {
	if lo > hi {
		panic("unexpected bounds")
	}
	return math.Max(lo, math.Min(hi, x))
}

func Sgn(x float64) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}

// AllFinite reports whether no value is NaN or infinite.
func AllFinite(fs []float64) bool {
	for _, f := range fs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns max |xs[i] - ys[i]|; xs and ys must have equal length.
func MaxAbsDiff(xs, ys []float64) float64 {
	if len(xs) != len(ys) {
		panic("unexpected number of values")
	}
	var m float64
	for i := range xs {
		d := math.Abs(xs[i] - ys[i])
		if d > m {
			m = d
		}
	}
	return m
}
