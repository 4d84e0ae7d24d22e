package fuzzy

import (
	"fmt"
	"strings"
)

// Defuzzifier selects how an aggregated output set is reduced to a crisp
// value.
type Defuzzifier int

const (
	// Centroid returns the membership-weighted mean of the output universe.
	Centroid Defuzzifier = iota
	// MeanOfMaximum returns the mean of the points attaining the maximum
	// aggregated membership.
	MeanOfMaximum
)

// Points whose membership is within maxEpsilon of the maximum count as
// maximal.
const maxEpsilon = 1e-9

func (d Defuzzifier) String() string {
	switch d {
	case Centroid:
		return "centroid"
	case MeanOfMaximum:
		return "mom"
	default:
		return fmt.Sprintf("Defuzzifier(%d)", int(d))
	}
}

func (d Defuzzifier) valid() bool {
	return d == Centroid || d == MeanOfMaximum
}

func ParseDefuzzifier(s string) (Defuzzifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "centroid", "":
		return Centroid, nil
	case "mom", "mean-of-maximum", "mean_of_maximum":
		return MeanOfMaximum, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidDefuzzifier)
	}
}

func (d Defuzzifier) MarshalText() ([]byte, error) {
	if !d.valid() {
		return nil, fmt.Errorf("%v: %w", d, ErrInvalidDefuzzifier)
	}
	return []byte(d.String()), nil
}

func (d *Defuzzifier) UnmarshalText(text []byte) error {
	v, err := ParseDefuzzifier(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Defuzzifier) defuzzify(xs, mu []float64) float64 {
	switch d {
	case Centroid:
		return centroid(xs, mu)
	case MeanOfMaximum:
		return meanOfMaximum(xs, mu)
	default:
		panic("unexpected defuzzification method")
	}
}

func centroid(xs, mu []float64) float64 {
	var num, den float64
	for i, x := range xs {
		num += x * mu[i]
		den += mu[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func meanOfMaximum(xs, mu []float64) float64 {
	var mx float64
	for _, m := range mu {
		if m > mx {
			mx = m
		}
	}
	if mx == 0 {
		return 0
	}
	var sum float64
	var n int
	for i, x := range xs {
		if mu[i] >= mx-maxEpsilon {
			sum += x
			n++
		}
	}
	return sum / float64(n)
}
