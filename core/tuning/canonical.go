package tuning

import (
	"fmt"
	"math"

	"example.com/string-tuner/base/floats"
	"example.com/string-tuner/core/fuzzy"
)

const (
	FrequencyVariable = "frequency"
	LengthVariable    = "stringLength"
	TurnVariable      = "turn"
)

var (
	frequencyUniverse = fuzzy.Universe{Min: 0, Max: 19980}
	lengthUniverse    = fuzzy.Universe{Min: 0.08, Max: 1.2}
	turnUniverse      = fuzzy.Universe{Min: 0, Max: 2}
)

// Distance between current and target pitch in Hz, one term per octave.
var frequencyPeaks = []float64{0, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// Current stretched string length in m. Each class needs about twice the
// turn of the previous one for the same pitch difference.
var lengthPeaks = []float64{0.08, 0.1, 0.14, 0.2, 0.28, 0.44, 0.72, 1.2}

// Peg turn magnitude in revolutions: none, then half-octave steps rounded to
// the output sampling grid.
var turnPeaks = []float64{
	0, 0.0002, 0.0003, 0.0004, 0.0006, 0.0008, 0.0011, 0.0016, 0.0023, 0.0032,
	0.0045, 0.0064, 0.0091, 0.0128, 0.0181, 0.0256, 0.0362, 0.0512, 0.0724,
	0.1024, 0.1448, 0.2048, 0.2896, 0.4096, 0.5793, 0.8192, 1.1585, 1.6384,
}

// Turn terms are triangles of equal width, so the centroid is the firing
// weighted mean of their peaks.
const turnHalfWidth = 0.0001

var (
	frequencyTerms = partition(frequencyPeaks, frequencyUniverse, "%gHz")
	lengthTerms    = partition(lengthPeaks, lengthUniverse, "%gm")
	turnTerms      = narrowTerms(turnPeaks, turnHalfWidth, "%grev")
)

// partition covers u with triangles peaking at ps, each falling to zero at
// the neighbouring peaks, so memberships of adjacent terms sum to one. The
// last term is a shoulder up to u.Max.
func partition(ps []float64, u fuzzy.Universe, format string) []fuzzy.Set {
	sets := make([]fuzzy.Set, len(ps))
	for i, p := range ps {
		lo, hi := p, u.Max
		if i > 0 {
			lo = ps[i-1]
		}
		shape := fuzzy.Trapezoidal(lo, p, u.Max, u.Max)
		if i+1 < len(ps) {
			hi = ps[i+1]
			shape = fuzzy.Triangular(lo, p, hi)
		}
		sets[i] = fuzzy.MustSet(fmt.Sprintf(format, p), shape)
	}
	return sets
}

func narrowTerms(ps []float64, hw float64, format string) []fuzzy.Set {
	sets := make([]fuzzy.Set, len(ps))
	for i, p := range ps {
		sets[i] = fuzzy.MustSet(fmt.Sprintf(format, p), fuzzy.Triangular(max(p-hw, 0), p, p+hw))
	}
	return sets
}

// canonicalTurn maps a (frequency term, length term) pair to a turn term.
// Near the target the turn is proportional to the pitch difference: one
// octave of difference is two turn steps and each longer length class adds
// two more. Far from the target every class grows by one step per octave so
// that the longest class ends on the largest turn.
//
// Going up one length class never moves further than going up one
// frequency term, and no two neighbouring frequency terms share a turn term.
// Together with the partitions above this keeps the advised turn
// non-decreasing in the pitch difference at every length.
func canonicalTurn(idx []int) int {
	f, l := idx[0], idx[1]
	if f == 0 {
		return 0
	}
	return min(2*(f+l)-1, f+len(turnTerms)-len(frequencyTerms))
}

// CanonicalRuleBase returns the rule base used to advise peg turns: inputs
// frequency (|target - current| in Hz) and stringLength (m), output turn
// (revolutions).
func CanonicalRuleBase() (*fuzzy.RuleBase, error) {
	freq, err := fuzzy.NewVariable(FrequencyVariable, frequencyUniverse, frequencyTerms...)
	if err != nil {
		return nil, err
	}
	length, err := fuzzy.NewVariable(LengthVariable, lengthUniverse, lengthTerms...)
	if err != nil {
		return nil, err
	}
	turn, err := fuzzy.NewVariable(TurnVariable, turnUniverse, turnTerms...)
	if err != nil {
		return nil, err
	}
	inputs := []*fuzzy.Variable{freq, length}
	rules, err := fuzzy.CombinationRules(inputs, turn, canonicalTurn)
	if err != nil {
		return nil, err
	}
	return fuzzy.NewRuleBase(inputs, turn, rules)
}

// NewCanonicalEngine builds an engine over CanonicalRuleBase. The output must
// be sampled at least as finely as the turn terms are wide.
func NewCanonicalEngine(opts fuzzy.Options) (*fuzzy.Engine, error) {
	if opts.Resolution > turnHalfWidth {
		return nil, fmt.Errorf("%g coarser than %g: %w",
			opts.Resolution, turnHalfWidth, fuzzy.ErrInvalidResolution)
	}
	rb, err := CanonicalRuleBase()
	if err != nil {
		return nil, err
	}
	return fuzzy.NewEngine(rb, opts)
}

// Advisor turns pitch differences into signed peg turns. It is not safe for
// concurrent use; use Clone to obtain one advisor per goroutine.
type Advisor struct {
	eng    *fuzzy.Engine
	inputs map[string]float64
}

func NewAdvisor(opts fuzzy.Options) (*Advisor, error) {
	eng, err := NewCanonicalEngine(opts)
	if err != nil {
		return nil, err
	}
	return NewAdvisorFromEngine(eng)
}

// NewAdvisorFromEngine wraps an engine whose rule base has the inputs
// frequency and stringLength.
func NewAdvisorFromEngine(eng *fuzzy.Engine) (*Advisor, error) {
	names := make(map[string]bool)
	for _, v := range eng.RuleBase().Inputs() {
		names[v.Name()] = true
	}
	if len(names) != 2 || !names[FrequencyVariable] || !names[LengthVariable] {
		return nil, fmt.Errorf("inputs must be %q and %q: %w",
			FrequencyVariable, LengthVariable, fuzzy.ErrInvalidRuleBase)
	}
	return &Advisor{
		eng:    eng,
		inputs: make(map[string]float64, 2),
	}, nil
}

func (a *Advisor) Engine() *fuzzy.Engine { return a.eng }

func (a *Advisor) Clone() *Advisor {
	return &Advisor{
		eng:    a.eng.Clone(),
		inputs: make(map[string]float64, 2),
	}
}

// Magnitude returns the unsigned turn advised for a pitch difference of
// |diff| Hz on a string currently length m long.
func (a *Advisor) Magnitude(diff, length float64) (float64, error) {
	a.inputs[FrequencyVariable] = math.Abs(diff)
	a.inputs[LengthVariable] = length
	return a.eng.Infer(a.inputs)
}

// Turn returns the signed turn that moves a string sounding at current
// towards target: positive tightens, negative loosens, zero when the two
// coincide.
func (a *Advisor) Turn(target, current, length float64) (float64, error) {
	diff := target - current
	m, err := a.Magnitude(diff, length)
	if err != nil {
		return 0, err
	}
	return float64(floats.Sgn(diff)) * m, nil
}
