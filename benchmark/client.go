package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"go.uber.org/zap"

	"example.com/string-tuner/base/floats"
	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/tuning"
)

const (
	maxIterationsRecorded = 1_000_000
	maxMicrosRecorded     = 600_000_000
)

type Options struct {
	Preset  instrument.Preset
	Runs    int
	Workers int
	Seed    uint64
	Engine  fuzzy.Options
	Tuning  tuning.Options
}

type Report struct {
	Runs      int
	Converged int
	TimedOut  int
	// Iterations per run and wall-clock microseconds per run.
	Iterations *hdrhistogram.Histogram
	Durations  *hdrhistogram.Histogram
	// Residuals holds the largest remaining |target - frequency| of every
	// run in Hz.
	Residuals []float64
	Elapsed   time.Duration
}

func (r *Report) MedianResidual() float64 {
	if len(r.Residuals) == 0 {
		return 0
	}
	return floats.Median(r.Residuals)
}

func newHistograms() (its, ds *hdrhistogram.Histogram) {
	return hdrhistogram.New(1, maxIterationsRecorded, 3), hdrhistogram.New(1, maxMicrosRecorded, 3)
}

// randomStart detunes every string to a pitch drawn uniformly from
// [target/2, 3*target/2].
func randomStart(in *instrument.Instrument, rng *rand.Rand) error {
	for i, f := range in.Targets() {
		err := in.SetFrequency(i, max(0, f*(0.5+rng.Float64())))
		if err != nil {
			return err
		}
	}
	return nil
}

// Run tunes opts.Runs instruments from random starting pitches on
// opts.Workers goroutines.
func Run(ctx context.Context, log *zap.Logger, opts Options) (*Report, error) {
	if opts.Runs <= 0 {
		return nil, errors.New("number of runs must be positive")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	opts.Workers = min(opts.Workers, opts.Runs)
	adv, err := tuning.NewAdvisor(opts.Engine)
	if err != nil {
		return nil, err
	}
	spec, err := instrument.PresetSpec(opts.Preset, 0)
	if err != nil {
		return nil, err
	}

	r := &Report{}
	r.Iterations, r.Durations = newHistograms()
	var mu sync.Mutex
	var firstErr error
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(opts.Workers)
	for w := range opts.Workers {
		n := opts.Runs / opts.Workers
		if w < opts.Runs%opts.Workers {
			n++
		}
		go func() {
			defer wg.Done()
			its, ds := newHistograms()
			var converged, timedOut int
			var residuals []float64
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(w)))
			c := tuning.Controller{Advisor: adv.Clone()}
			err := func() error {
				in, err := instrument.New(spec)
				if err != nil {
					return err
				}
				<-sg
				for range n {
					err = randomStart(in, rng)
					if err != nil {
						return err
					}
					res, err := c.Tune(ctx, in, opts.Tuning)
					switch {
					case err == nil:
						converged++
					case errors.Is(err, tuning.ErrTimedOut):
						if ctx.Err() != nil {
							return ctx.Err()
						}
						timedOut++
					default:
						return err
					}
					residuals = append(residuals, res.Residual(in.Targets()))
					err = its.RecordValue(int64(res.Iterations))
					if err != nil {
						return err
					}
					err = ds.RecordValue(max(1, res.Elapsed.Microseconds()))
					if err != nil {
						return err
					}
				}
				return nil
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Info("benchmark worker failed", zap.Int("worker", w), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
			r.Iterations.Merge(its)
			r.Durations.Merge(ds)
			r.Residuals = append(r.Residuals, residuals...)
			r.Converged += converged
			r.TimedOut += timedOut
			r.Runs += converged + timedOut
		}()
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	r.Elapsed = time.Since(t0)
	if firstErr != nil {
		return r, firstErr
	}
	return r, nil
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "runs: %d, converged: %d, timed out: %d, median residual: %.3f Hz, elapsed: %v\n",
		r.Runs, r.Converged, r.TimedOut, r.MedianResidual(), r.Elapsed)
	fmt.Fprintln(w, "iterations per run:")
	r.Iterations.PercentilesPrint(w, 1, 1.0)
	fmt.Fprintln(w, "microseconds per run:")
	r.Durations.PercentilesPrint(w, 1, 1.0)
}
