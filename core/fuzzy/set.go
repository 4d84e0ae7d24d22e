package fuzzy

import (
	"fmt"
)

// Shape holds the breakpoints of a trapezoidal membership function. The
// function rises on [A, B], is 1 on [B, C] and falls on [C, D]. A triangle is
// a trapezoid with B == C.
type Shape struct {
	A, B, C, D float64
}

func Triangular(a, b, c float64) Shape {
	return Shape{A: a, B: b, C: b, D: c}
}

func Trapezoidal(a, b, c, d float64) Shape {
	return Shape{A: a, B: b, C: c, D: d}
}

func (s Shape) IsTriangular() bool {
	return s.B == s.C
}

// Comparisons with NaN are false, so NaN breakpoints are rejected as well.
func (s Shape) valid() bool {
	return s.A <= s.B && s.B <= s.C && s.C <= s.D
}

func (s Shape) String() string {
	if s.IsTriangular() {
		return fmt.Sprintf("trimf[%g %g %g]", s.A, s.B, s.D)
	}
	return fmt.Sprintf("trapmf[%g %g %g %g]", s.A, s.B, s.C, s.D)
}

// Set is a labelled membership function.
type Set struct {
	Label string
	Shape Shape
}

func NewSet(label string, shape Shape) (Set, error) {
	if !shape.valid() {
		return Set{}, fmt.Errorf("set %q %v: %w", label, shape, ErrBreakpoints)
	}
	return Set{Label: label, Shape: shape}, nil
}

// MustSet is like NewSet but panics on invalid breakpoints. It is meant for
// statically known rule tables.
func MustSet(label string, shape Shape) Set {
	s, err := NewSet(label, shape)
	if err != nil {
		panic(err)
	}
	return s
}

// Membership returns the degree in [0, 1] to which x belongs to s.
func (s Set) Membership(x float64) float64 {
	sh := s.Shape
	switch {
	case !(x >= sh.A && x <= sh.D):
		return 0
	case x >= sh.B && x <= sh.C:
		return 1
	case x < sh.B:
		return (x - sh.A) / (sh.B - sh.A)
	default:
		return (sh.D - x) / (sh.D - sh.C)
	}
}
