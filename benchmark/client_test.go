package benchmark_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/string-tuner/benchmark"
	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/tuning"
)

func TestRun(t *testing.T) {
	opts := benchmark.Options{
		Preset:  instrument.ClassicalGuitar,
		Runs:    9,
		Workers: 4,
		Seed:    1,
		Engine:  fuzzy.Options{Defuzzifier: fuzzy.MeanOfMaximum},
		Tuning: tuning.Options{
			ToleranceHz:   tuning.DefaultToleranceHz,
			TimeLimit:     10 * time.Second,
			MaxIterations: 200,
		},
	}
	r, err := benchmark.Run(context.Background(), zap.NewNop(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.Runs != 9 || r.Converged+r.TimedOut != 9 {
		t.Errorf("runs %d, converged %d, timed out %d", r.Runs, r.Converged, r.TimedOut)
	}
	if r.Iterations.TotalCount() != 9 || r.Durations.TotalCount() != 9 {
		t.Errorf("recorded %d iteration counts, %d durations",
			r.Iterations.TotalCount(), r.Durations.TotalCount())
	}
	if r.Iterations.Max() > 200 {
		t.Errorf("max iterations = %d", r.Iterations.Max())
	}
	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "runs: 9") {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestRunInvalid(t *testing.T) {
	if _, err := benchmark.Run(context.Background(), zap.NewNop(), benchmark.Options{}); err == nil {
		t.Errorf("Run with zero runs succeeded")
	}
}

func TestMedianResidual(t *testing.T) {
	var r benchmark.Report
	if r.MedianResidual() != 0 {
		t.Errorf("MedianResidual() of empty report = %v", r.MedianResidual())
	}
	r.Residuals = []float64{3, 0.5, 1}
	if r.MedianResidual() != 1 {
		t.Errorf("MedianResidual() = %v, want 1", r.MedianResidual())
	}
}
