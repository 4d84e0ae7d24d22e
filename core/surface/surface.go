// Package surface evaluates the turn advice over a grid of frequency
// differences and string lengths.
package surface

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"example.com/string-tuner/base/metrics"
	"example.com/string-tuner/core/tuning"
)

var (
	ErrInvalidGrid = errors.New("invalid grid")

	surfaceMtrcs atomic.Pointer[surfaceMetrics]
)

type surfaceMetrics struct {
	cells prometheus.Counter
}

func init() {
	surfaceMtrcs.Store(&surfaceMetrics{
		cells: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SurfaceCellsN,
			Help: metrics.SurfaceCellsH,
		}),
	})
}

// Grid spans [0, MaxDiff] Hz and [MinLength, MaxLength] m with FreqSteps and
// LengthSteps sample points, both ends included.
type Grid struct {
	MaxDiff     float64
	MinLength   float64
	MaxLength   float64
	FreqSteps   int
	LengthSteps int
}

func DefaultGrid() Grid {
	return Grid{
		MaxDiff:     2000,
		MinLength:   0.08,
		MaxLength:   1.2,
		FreqSteps:   100,
		LengthSteps: 50,
	}
}

func (g Grid) check() error {
	if !(g.MaxDiff > 0) || !(g.MinLength > 0) || !(g.MaxLength >= g.MinLength) ||
		g.FreqSteps < 2 || g.LengthSteps < 2 {
		return fmt.Errorf("%+v: %w", g, ErrInvalidGrid)
	}
	return nil
}

func linspace(lo, hi float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	xs[n-1] = hi
	return xs
}

// Table holds Turns[i][j], the unsigned turn for Diffs[i] and Lengths[j].
type Table struct {
	Diffs   []float64
	Lengths []float64
	Turns   [][]float64
}

// Compute evaluates adv on every grid point using the given number of
// workers, each on its own clone of adv. workers <= 0 selects GOMAXPROCS.
func Compute(ctx context.Context, adv *tuning.Advisor, g Grid, workers int) (*Table, error) {
	err := g.check()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, g.FreqSteps)

	t := &Table{
		Diffs:   linspace(0, g.MaxDiff, g.FreqSteps),
		Lengths: linspace(g.MinLength, g.MaxLength, g.LengthSteps),
		Turns:   make([][]float64, g.FreqSteps),
	}
	rows := make(chan int)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(rows)
		for i := range t.Diffs {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case rows <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	mtrcs := surfaceMtrcs.Load()
	for range workers {
		a := adv.Clone()
		eg.Go(func() error {
			for i := range rows {
				row := make([]float64, len(t.Lengths))
				for j, l := range t.Lengths {
					m, err := a.Magnitude(t.Diffs[i], l)
					if err != nil {
						return fmt.Errorf("diff %g, length %g: %w", t.Diffs[i], l, err)
					}
					row[j] = m
				}
				t.Turns[i] = row
				mtrcs.cells.Add(float64(len(row)))
			}
			return nil
		})
	}
	err = eg.Wait()
	if err != nil {
		return nil, err
	}
	return t, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteCSV writes one diff_hz,length_m,turn_rev record per grid point.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	err := cw.Write([]string{"diff_hz", "length_m", "turn_rev"})
	if err != nil {
		return err
	}
	for i, d := range t.Diffs {
		for j, l := range t.Lengths {
			err = cw.Write([]string{formatFloat(d), formatFloat(l), formatFloat(t.Turns[i][j])})
			if err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
