// Package graph records per-iteration string frequencies and plots them.
package graph

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

var errNoData = errors.New("no iterations recorded")

// Recorder collects frequency vectors. Record matches the signature of the
// tuning controller's graph hook.
type Recorder struct {
	mu    sync.Mutex
	its   []int
	freqs [][]float64
}

func (r *Recorder) Record(iteration int, freqs []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.its = append(r.its, iteration)
	r.freqs = append(r.freqs, slices.Clone(freqs))
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.its)
}

// Series returns the recorded trajectory of string i.
func (r *Recorder) Series(i int) plotter.XYs {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make(plotter.XYs, len(r.its))
	for k, it := range r.its {
		data[k] = plotter.XY{X: float64(it), Y: r.freqs[k][i]}
	}
	return data
}

// Plot draws one line per string and a dashed line at every target.
func (r *Recorder) Plot(title string, targets []float64) (*plot.Plot, error) {
	n := r.Len()
	if n == 0 {
		return nil, errNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.X.Label.Padding = vg.Points(5)
	p.Y.Label.Text = "Frequency [Hz]"
	p.Y.Label.Padding = vg.Points(5)

	p.Add(plotter.NewGrid())

	last := r.Series(0)[n-1].X
	for i, target := range targets {
		line, err := plotter.NewLine(r.Series(i))
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("string %d", i+1), line)

		goal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: target}, {X: last, Y: target}})
		if err != nil {
			return nil, err
		}
		goal.Color = plotutil.Color(i)
		goal.Dashes = plotutil.Dashes(1)
		p.Add(goal)
	}
	return p, nil
}

// WritePDF renders the recorded trajectories as a PDF document.
func (r *Recorder) WritePDF(w io.Writer, title string, targets []float64) error {
	p, err := r.Plot(title, targets)
	if err != nil {
		return err
	}
	c := vgpdf.New(8.5*vg.Inch, 4*vg.Inch)
	c.EmbedFonts(true)
	dc := draw.New(c)
	dc = draw.Crop(dc, 1*vg.Millimeter, -1*vg.Millimeter, 1*vg.Millimeter, -1*vg.Millimeter)

	p.Draw(dc)

	_, err = c.WriteTo(w)
	return err
}
