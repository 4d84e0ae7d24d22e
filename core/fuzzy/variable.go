package fuzzy

import (
	"fmt"
	"math"
	"slices"

	"example.com/string-tuner/base/floats"
)

type Universe struct {
	Min, Max float64
}

func (u Universe) valid() bool {
	return u.Min < u.Max && !math.IsInf(u.Min, 0) && !math.IsInf(u.Max, 0)
}

func (u Universe) Contains(x float64) bool {
	return x >= u.Min && x <= u.Max
}

func (u Universe) Clamp(x float64) float64 {
	return floats.Clamp(x, u.Min, u.Max)
}

// Variable is a linguistic variable: an ordered list of terms over a shared
// universe. Term order is significant, rule tables are generated from it.
type Variable struct {
	name     string
	universe Universe
	terms    []Set
	index    map[string]int
}

func NewVariable(name string, universe Universe, terms ...Set) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("empty name: %w", ErrInvalidVariable)
	}
	if !universe.valid() {
		return nil, fmt.Errorf("variable %q [%g, %g]: %w",
			name, universe.Min, universe.Max, ErrInvalidUniverse)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("variable %q has no terms: %w", name, ErrInvalidVariable)
	}
	v := &Variable{
		name:     name,
		universe: universe,
		terms:    slices.Clone(terms),
		index:    make(map[string]int, len(terms)),
	}
	for i, t := range v.terms {
		if !t.Shape.valid() {
			return nil, fmt.Errorf("variable %q, term %q %v: %w",
				name, t.Label, t.Shape, ErrBreakpoints)
		}
		if !universe.Contains(t.Shape.A) || !universe.Contains(t.Shape.D) {
			return nil, fmt.Errorf("variable %q, term %q %v: %w",
				name, t.Label, t.Shape, ErrTermOutsideUniverse)
		}
		if _, ok := v.index[t.Label]; ok {
			return nil, fmt.Errorf("variable %q, term %q: %w", name, t.Label, ErrDuplicateTerm)
		}
		v.index[t.Label] = i
	}
	return v, nil
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Universe() Universe { return v.universe }

func (v *Variable) Len() int { return len(v.terms) }

func (v *Variable) Term(i int) Set { return v.terms[i] }

func (v *Variable) Terms() []Set { return slices.Clone(v.terms) }

func (v *Variable) Labels() []string {
	ls := make([]string, len(v.terms))
	for i, t := range v.terms {
		ls[i] = t.Label
	}
	return ls
}

func (v *Variable) Index(label string) (int, bool) {
	i, ok := v.index[label]
	return i, ok
}

func (v *Variable) Clamp(x float64) float64 {
	return v.universe.Clamp(x)
}

// MembershipOf evaluates the term with the given label at x. x is not
// clamped to the universe.
func (v *Variable) MembershipOf(label string, x float64) (float64, error) {
	i, ok := v.index[label]
	if !ok {
		return 0, fmt.Errorf("variable %q, term %q: %w", v.name, label, ErrUnknownTerm)
	}
	return v.terms[i].Membership(x), nil
}
