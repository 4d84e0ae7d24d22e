package surface_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/surface"
	"example.com/string-tuner/core/tuning"
)

func TestCompute(t *testing.T) {
	adv, err := tuning.NewAdvisor(fuzzy.Options{Defuzzifier: fuzzy.MeanOfMaximum})
	if err != nil {
		t.Fatalf("NewAdvisor failed: %v", err)
	}
	g := surface.Grid{MaxDiff: 1000, MinLength: 0.1, MaxLength: 1.2, FreqSteps: 21, LengthSteps: 5}
	for _, workers := range []int{0, 1, 3, 64} {
		tab, err := surface.Compute(context.Background(), adv, g, workers)
		if err != nil {
			t.Fatalf("Compute(%d workers) failed: %v", workers, err)
		}
		if len(tab.Diffs) != 21 || len(tab.Lengths) != 5 || len(tab.Turns) != 21 {
			t.Fatalf("table shape %d x %d", len(tab.Diffs), len(tab.Lengths))
		}
		if tab.Diffs[0] != 0 || tab.Diffs[20] != 1000 || tab.Lengths[4] != 1.2 {
			t.Errorf("grid ends %v, %v, %v", tab.Diffs[0], tab.Diffs[20], tab.Lengths[4])
		}
		for i, d := range tab.Diffs {
			for j, l := range tab.Lengths {
				want, err := adv.Magnitude(d, l)
				if err != nil {
					t.Fatal(err)
				}
				if tab.Turns[i][j] != want {
					t.Errorf("turn(%v, %v) = %v, want %v", d, l, tab.Turns[i][j], want)
				}
			}
		}
	}
}

func TestComputeInvalid(t *testing.T) {
	adv, err := tuning.NewAdvisor(fuzzy.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range []surface.Grid{
		{MaxDiff: 0, MinLength: 0.1, MaxLength: 1, FreqSteps: 2, LengthSteps: 2},
		{MaxDiff: 10, MinLength: 1, MaxLength: 0.5, FreqSteps: 2, LengthSteps: 2},
		{MaxDiff: 10, MinLength: 0.1, MaxLength: 1, FreqSteps: 1, LengthSteps: 2},
	} {
		if _, err := surface.Compute(context.Background(), adv, g, 1); !errors.Is(err, surface.ErrInvalidGrid) {
			t.Errorf("Compute(%+v) error = %v, want %v", g, err, surface.ErrInvalidGrid)
		}
	}
}

func TestComputeCanceled(t *testing.T) {
	adv, err := tuning.NewAdvisor(fuzzy.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := surface.Compute(ctx, adv, surface.DefaultGrid(), 2); !errors.Is(err, context.Canceled) {
		t.Errorf("Compute error = %v, want %v", err, context.Canceled)
	}
}

func TestWriteCSV(t *testing.T) {
	tab := &surface.Table{
		Diffs:   []float64{0, 50},
		Lengths: []float64{0.65},
		Turns:   [][]float64{{0.012}, {0.04}},
	}
	var buf bytes.Buffer
	if err := tab.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	want := [][]string{
		{"diff_hz", "length_m", "turn_rev"},
		{"0", "0.65", "0.012"},
		{"50", "0.65", "0.04"},
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if recs[i][j] != want[i][j] {
				t.Errorf("record %d field %d = %q, want %q", i, j, recs[i][j], want[i][j])
			}
		}
	}
}
