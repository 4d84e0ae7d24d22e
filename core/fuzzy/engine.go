package fuzzy

import (
	"fmt"
	"math"
	"slices"
)

const DefaultResolution = 0.0001

type Options struct {
	Defuzzifier Defuzzifier
	// Resolution is the sampling step of the output universe. Zero selects
	// DefaultResolution.
	Resolution float64
}

func DefaultOptions() Options {
	return Options{
		Defuzzifier: Centroid,
		Resolution:  DefaultResolution,
	}
}

// Engine is a Mamdani inference engine: min for AND, max for aggregation,
// clipping of the consequent sets and a configurable defuzzifier over a
// sampled output universe.
//
// An Engine keeps scratch buffers and is not safe for concurrent use.
type Engine struct {
	rb   *RuleBase
	opts Options

	xs    []float64   // sampled output universe
	mus   [][]float64 // output term memberships at xs
	spans [][2]int    // index range of xs where each term is non-zero

	crisp []float64
	caps  []float64
	agg   []float64
}

func NewEngine(rb *RuleBase, opts Options) (*Engine, error) {
	if rb == nil {
		return nil, ErrInvalidRuleBase
	}
	if !opts.Defuzzifier.valid() {
		return nil, fmt.Errorf("%v: %w", opts.Defuzzifier, ErrInvalidDefuzzifier)
	}
	if opts.Resolution == 0 {
		opts.Resolution = DefaultResolution
	}
	u := rb.output.Universe()
	if !(opts.Resolution > 0) || opts.Resolution > u.Max-u.Min {
		return nil, fmt.Errorf("%g: %w", opts.Resolution, ErrInvalidResolution)
	}
	n := int(math.Round((u.Max-u.Min)/opts.Resolution)) + 1
	e := &Engine{
		rb:    rb,
		opts:  opts,
		xs:    make([]float64, n),
		mus:   make([][]float64, rb.output.Len()),
		spans: make([][2]int, rb.output.Len()),
		crisp: make([]float64, len(rb.inputs)),
		caps:  make([]float64, rb.output.Len()),
		agg:   make([]float64, n),
	}
	for i := range e.xs {
		e.xs[i] = u.Min + float64(i)*opts.Resolution
	}
	for k := range e.mus {
		t := rb.output.Term(k)
		e.mus[k] = make([]float64, n)
		lo, hi := n, 0
		for i, x := range e.xs {
			m := t.Membership(x)
			e.mus[k][i] = m
			if m > 0 {
				lo, hi = min(lo, i), i+1
			}
		}
		e.spans[k] = [2]int{lo, max(lo, hi)}
	}
	return e, nil
}

func (e *Engine) RuleBase() *RuleBase { return e.rb }

func (e *Engine) Options() Options { return e.opts }

// Clone returns an engine sharing the immutable rule base and sampled
// output sets but with its own scratch buffers.
func (e *Engine) Clone() *Engine {
	return &Engine{
		rb:    e.rb,
		opts:  e.opts,
		xs:    e.xs,
		mus:   e.mus,
		spans: e.spans,
		crisp: make([]float64, len(e.crisp)),
		caps:  make([]float64, len(e.caps)),
		agg:   make([]float64, len(e.agg)),
	}
}

func (e *Engine) fuzzify(inputs map[string]float64) error {
	for j, v := range e.rb.inputs {
		x, ok := inputs[v.Name()]
		if !ok {
			return fmt.Errorf("variable %q: %w", v.Name(), ErrMissingInput)
		}
		if math.IsNaN(x) {
			return fmt.Errorf("variable %q: %w", v.Name(), ErrInvalidInput)
		}
		e.crisp[j] = v.Clamp(x)
	}
	return nil
}

func (e *Engine) strength(i int) float64 {
	w := 1.0
	for j, k := range e.rb.ants[i] {
		w = min(w, e.rb.inputs[j].Term(k).Membership(e.crisp[j]))
	}
	return w
}

// Firing returns the firing strength of every rule, in rule base order.
func (e *Engine) Firing(inputs map[string]float64) ([]float64, error) {
	err := e.fuzzify(inputs)
	if err != nil {
		return nil, err
	}
	ws := make([]float64, len(e.rb.rules))
	for i := range ws {
		ws[i] = e.strength(i)
	}
	return ws, nil
}

// Aggregate returns the aggregated output membership sampled over the
// output universe, together with the sample points.
func (e *Engine) Aggregate(inputs map[string]float64) (xs, mu []float64, err error) {
	err = e.aggregate(inputs)
	if err != nil {
		return nil, nil, err
	}
	return slices.Clone(e.xs), slices.Clone(e.agg), nil
}

func (e *Engine) aggregate(inputs map[string]float64) error {
	err := e.fuzzify(inputs)
	if err != nil {
		return err
	}
	clear(e.caps)
	for i := range e.rb.rules {
		w := e.strength(i)
		k := e.rb.cons[i]
		if w > e.caps[k] {
			e.caps[k] = w
		}
	}
	clear(e.agg)
	for k, c := range e.caps {
		if c <= 0 {
			continue
		}
		sp := e.spans[k]
		for i := sp[0]; i < sp[1]; i++ {
			v := min(e.mus[k][i], c)
			if v > e.agg[i] {
				e.agg[i] = v
			}
		}
	}
	return nil
}

// Infer maps crisp inputs, keyed by variable name, to a crisp output. Inputs
// outside a variable's universe are clamped to it. If no rule fires the
// result is 0.
func (e *Engine) Infer(inputs map[string]float64) (float64, error) {
	err := e.aggregate(inputs)
	if err != nil {
		return 0, err
	}
	return e.opts.Defuzzifier.defuzzify(e.xs, e.agg), nil
}
