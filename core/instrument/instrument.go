package instrument

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"example.com/string-tuner/core/physics"
)

var (
	ErrMismatchedArrays = errors.New("per-string arrays must have identical length")
	ErrInvalidString    = errors.New("invalid string parameters")
	ErrNoStrings        = errors.New("instrument has no strings")
)

// String is the state of one string. Length is the current stretched length,
// OriginalLength the untensioned one.
type String struct {
	Target         float64
	Length         float64
	OriginalLength float64
	Frequency      float64
	ElasticModulus float64
	Density        float64
}

func (s *String) Diff() float64 {
	return s.Target - s.Frequency
}

// Spec holds the per-string arrays an instrument is built from, ordered the
// same way in every array.
type Spec struct {
	Name          string
	Targets       []float64
	Lengths       []float64
	ElasticModuli []float64
	Densities     []float64
}

func (s Spec) Check() error {
	n := len(s.Targets)
	if len(s.Lengths) != n || len(s.ElasticModuli) != n || len(s.Densities) != n {
		return fmt.Errorf("%d targets, %d lengths, %d elastic moduli, %d densities: %w",
			n, len(s.Lengths), len(s.ElasticModuli), len(s.Densities), ErrMismatchedArrays)
	}
	if n == 0 {
		return ErrNoStrings
	}
	for i := range n {
		if !positive(s.Lengths[i]) || !positive(s.ElasticModuli[i]) || !positive(s.Densities[i]) {
			return fmt.Errorf("string %d: length %g, elastic modulus %g, density %g: %w",
				i, s.Lengths[i], s.ElasticModuli[i], s.Densities[i], ErrInvalidString)
		}
		if math.IsNaN(s.Targets[i]) || math.IsInf(s.Targets[i], 0) {
			return fmt.Errorf("string %d: target %g: %w", i, s.Targets[i], ErrInvalidString)
		}
	}
	return nil
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

type Instrument struct {
	name    string
	strings []String
}

// New builds an instrument with every string at zero tension.
func New(spec Spec) (*Instrument, error) {
	err := spec.Check()
	if err != nil {
		return nil, err
	}
	in := &Instrument{
		name:    spec.Name,
		strings: make([]String, len(spec.Targets)),
	}
	for i := range in.strings {
		in.strings[i] = String{
			Target:         spec.Targets[i],
			OriginalLength: spec.Lengths[i],
			ElasticModulus: spec.ElasticModuli[i],
			Density:        spec.Densities[i],
		}
	}
	in.Reset()
	return in, nil
}

func (in *Instrument) Name() string { return in.name }

func (in *Instrument) Len() int { return len(in.strings) }

// StringAt returns a pointer to the state of string i. Only the tuning
// controller is expected to mutate it.
func (in *Instrument) StringAt(i int) *String { return &in.strings[i] }

func (in *Instrument) Strings() []String { return slices.Clone(in.strings) }

func (in *Instrument) Frequencies() []float64 {
	fs := make([]float64, len(in.strings))
	for i := range in.strings {
		fs[i] = in.strings[i].Frequency
	}
	return fs
}

func (in *Instrument) Targets() []float64 {
	fs := make([]float64, len(in.strings))
	for i := range in.strings {
		fs[i] = in.strings[i].Target
	}
	return fs
}

func (in *Instrument) Lengths() []float64 {
	ls := make([]float64, len(in.strings))
	for i := range in.strings {
		ls[i] = in.strings[i].Length
	}
	return ls
}

// Check verifies the string invariants. It is run before tuning starts.
func (in *Instrument) Check() error {
	if len(in.strings) == 0 {
		return ErrNoStrings
	}
	for i, s := range in.strings {
		if !positive(s.OriginalLength) || !positive(s.ElasticModulus) || !positive(s.Density) {
			return fmt.Errorf("string %d: %w", i, ErrInvalidString)
		}
		if s.Length < s.OriginalLength || !(s.Frequency >= 0) {
			return fmt.Errorf("string %d: length %g < %g or frequency %g < 0: %w",
				i, s.Length, s.OriginalLength, s.Frequency, ErrInvalidString)
		}
	}
	return nil
}

// Reset releases every string to zero tension.
func (in *Instrument) Reset() {
	for i := range in.strings {
		s := &in.strings[i]
		s.Frequency = 0
		s.Length = physics.LengthForFrequency(s.OriginalLength, 0, s.ElasticModulus, s.Density)
	}
}

// SetFrequency stretches string i so that it sounds at frequency.
func (in *Instrument) SetFrequency(i int, frequency float64) error {
	if !(frequency >= 0) || math.IsInf(frequency, 0) {
		return fmt.Errorf("string %d: frequency %g: %w", i, frequency, ErrInvalidString)
	}
	s := &in.strings[i]
	s.Length = physics.LengthForFrequency(s.OriginalLength, frequency, s.ElasticModulus, s.Density)
	s.Frequency = physics.FrequencyAtLength(s.OriginalLength, s.Length, s.ElasticModulus, s.Density)
	return nil
}
