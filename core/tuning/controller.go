package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"example.com/string-tuner/base/floats"
	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/physics"
)

type State int

const (
	Idle State = iota
	Iterating
	Converged
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultToleranceHz is roughly the just noticeable pitch difference in the
// guitar range.
const DefaultToleranceHz = 3.6

var (
	ErrTimedOut       = errors.New("tuning budget exhausted")
	ErrInvalidOptions = errors.New("invalid tuning options")

	tuningMtrcs atomic.Pointer[tuningMetrics]
)

func init() {
	tuningMtrcs.Store(newTuningMetrics())
}

// Options bound a tuning run. A zero TimeLimit or MaxIterations leaves the
// respective budget unbounded.
type Options struct {
	ToleranceHz   float64
	TimeLimit     time.Duration
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{ToleranceHz: DefaultToleranceHz}
}

func (o Options) check() error {
	if !(o.ToleranceHz >= 0) || math.IsInf(o.ToleranceHz, 0) {
		return fmt.Errorf("tolerance %g Hz: %w", o.ToleranceHz, ErrInvalidOptions)
	}
	if o.TimeLimit < 0 || o.MaxIterations < 0 {
		return fmt.Errorf("time limit %v, max iterations %d: %w",
			o.TimeLimit, o.MaxIterations, ErrInvalidOptions)
	}
	return nil
}

// Hooks are invoked after every iteration with a copy of the current
// frequencies. Nil hooks are skipped.
type Hooks struct {
	Play  func(freqs []float64)
	Graph func(iteration int, freqs []float64)
}

type Result struct {
	State State
	// Turns holds one signed turn per string for every iteration, zero for
	// strings that were within tolerance.
	Turns       [][]float64
	Frequencies []float64
	Iterations  int
	Elapsed     time.Duration
}

// Residual returns the largest remaining |target - frequency|.
func (r Result) Residual(targets []float64) float64 {
	return floats.MaxAbsDiff(targets, r.Frequencies)
}

// Controller drives the strings of an instrument towards their targets. A nil
// Log discards log output, a nil Advisor selects the canonical engine with
// default options.
type Controller struct {
	Log     *zap.Logger
	Advisor *Advisor
	Hooks   Hooks
}

func withinTolerance(s *instrument.String, tol float64) bool {
	return math.Abs(s.Diff()) <= tol
}

func converged(in *instrument.Instrument, tol float64) bool {
	for i := range in.Len() {
		if !withinTolerance(in.StringAt(i), tol) {
			return false
		}
	}
	return true
}

func exhausted(ctx context.Context, opts Options, start time.Time, iterations int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	}
	if opts.MaxIterations > 0 && iterations >= opts.MaxIterations {
		return fmt.Errorf("%w: %d iterations", ErrTimedOut, iterations)
	}
	if opts.TimeLimit > 0 {
		if elapsed := time.Since(start); elapsed > opts.TimeLimit {
			return fmt.Errorf("%w: %v elapsed", ErrTimedOut, elapsed)
		}
	}
	return nil
}

// Tune repeatedly turns the pegs of every string outside the tolerance band
// until all strings are within it or the budget is exhausted. The budget is
// checked once per iteration. On exhaustion the partial result is returned
// in state TimedOut together with an error wrapping ErrTimedOut. An inference
// error aborts the run in state Iterating with the strings as far as they got.
func (c *Controller) Tune(ctx context.Context, in *instrument.Instrument, opts Options) (Result, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	err := opts.check()
	if err != nil {
		return Result{State: Idle}, err
	}
	err = in.Check()
	if err != nil {
		return Result{State: Idle}, err
	}
	adv := c.Advisor
	if adv == nil {
		adv, err = NewAdvisor(fuzzy.DefaultOptions())
		if err != nil {
			panic("unexpected canonical engine failure")
		}
		c.Advisor = adv
	}
	mtrcs := tuningMtrcs.Load()

	start := time.Now()
	res := Result{State: Iterating}
	finish := func(s State) {
		res.State = s
		res.Frequencies = in.Frequencies()
		res.Elapsed = time.Since(start)
		residual := res.Residual(in.Targets())
		mtrcs.runs.WithLabelValues(s.String()).Inc()
		mtrcs.residual.Set(residual)
		log.Info("tuning finished",
			zap.String("instrument", in.Name()),
			zap.Stringer("state", s),
			zap.Int("iterations", res.Iterations),
			zap.Duration("elapsed", res.Elapsed),
			zap.Float64("residual", residual),
		)
	}

	for {
		if converged(in, opts.ToleranceHz) {
			finish(Converged)
			return res, nil
		}
		if err := exhausted(ctx, opts, start, res.Iterations); err != nil {
			finish(TimedOut)
			return res, err
		}
		turns := make([]float64, in.Len())
		for i := range in.Len() {
			s := in.StringAt(i)
			if withinTolerance(s, opts.ToleranceHz) {
				continue
			}
			t, err := adv.Turn(s.Target, s.Frequency, s.Length)
			if err != nil {
				finish(Iterating)
				return res, fmt.Errorf("string %d: %w", i, err)
			}
			s.Length = physics.NewLength(s.OriginalLength, s.Length, t)
			s.Frequency = physics.FrequencyAtLength(s.OriginalLength, s.Length, s.ElasticModulus, s.Density)
			turns[i] = t
			mtrcs.turns.Inc()
		}
		res.Turns = append(res.Turns, turns)
		res.Iterations++
		mtrcs.iterations.Inc()

		freqs := in.Frequencies()
		log.Debug("tuning iteration",
			zap.Int("iteration", res.Iterations),
			zap.Float64s("frequencies", freqs),
			zap.Float64s("turns", turns),
		)
		if c.Hooks.Play != nil {
			c.Hooks.Play(slices.Clone(freqs))
		}
		if c.Hooks.Graph != nil {
			c.Hooks.Graph(res.Iterations, slices.Clone(freqs))
		}
	}
}
