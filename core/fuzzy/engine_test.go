package fuzzy_test

import (
	"errors"
	"math"
	"testing"

	"example.com/string-tuner/core/fuzzy"
)

// gapEngine has one input with a hole in [4, 6] where no rule fires.
func gapEngine(t *testing.T, d fuzzy.Defuzzifier) *fuzzy.Engine {
	t.Helper()
	x := mustVariable(t, "x", fuzzy.Universe{Min: 0, Max: 10},
		fuzzy.MustSet("a", fuzzy.Trapezoidal(0, 0, 2, 4)),
		fuzzy.MustSet("b", fuzzy.Trapezoidal(6, 8, 10, 10)),
	)
	y := mustVariable(t, "y", fuzzy.Universe{Min: 0, Max: 1},
		fuzzy.MustSet("lo", fuzzy.Triangular(0, 0.25, 0.5)),
		fuzzy.MustSet("hi", fuzzy.Triangular(0.5, 0.75, 1)),
	)
	rb, err := fuzzy.NewRuleBase([]*fuzzy.Variable{x}, y, []fuzzy.Rule{
		{Antecedents: []string{"a"}, Consequent: "lo"},
		{Antecedents: []string{"b"}, Consequent: "hi"},
	})
	if err != nil {
		t.Fatalf("NewRuleBase failed: %v", err)
	}
	e, err := fuzzy.NewEngine(rb, fuzzy.Options{Defuzzifier: d})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func infer(t *testing.T, e *fuzzy.Engine, inputs map[string]float64) float64 {
	t.Helper()
	y, err := e.Infer(inputs)
	if err != nil {
		t.Fatalf("Infer(%v) failed: %v", inputs, err)
	}
	return y
}

func TestInferSymmetricTerms(t *testing.T) {
	for _, d := range []fuzzy.Defuzzifier{fuzzy.Centroid, fuzzy.MeanOfMaximum} {
		e := gapEngine(t, d)
		tests := []struct {
			x, want float64
		}{
			{x: 1, want: 0.25},
			{x: 3, want: 0.25}, // clipped at 0.5, still symmetric
			{x: 9, want: 0.75},
			{x: 5, want: 0},       // no rule fires
			{x: -100, want: 0.25}, // clamped to 0
			{x: 100, want: 0.75},  // clamped to 10
		}
		for _, tt := range tests {
			got := infer(t, e, map[string]float64{"x": tt.x})
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%v: Infer(x=%v) = %v, want %v", d, tt.x, got, tt.want)
			}
		}
	}
}

func shoulderEngine(t *testing.T, d fuzzy.Defuzzifier) *fuzzy.Engine {
	t.Helper()
	x := mustVariable(t, "x", fuzzy.Universe{Min: 0, Max: 1},
		fuzzy.MustSet("a", fuzzy.Triangular(0, 0, 1)),
	)
	y := mustVariable(t, "y", fuzzy.Universe{Min: 0, Max: 1},
		fuzzy.MustSet("lo", fuzzy.Triangular(0, 0, 1)),
	)
	rb, err := fuzzy.NewRuleBase([]*fuzzy.Variable{x}, y, []fuzzy.Rule{
		{Antecedents: []string{"a"}, Consequent: "lo"},
	})
	if err != nil {
		t.Fatalf("NewRuleBase failed: %v", err)
	}
	e, err := fuzzy.NewEngine(rb, fuzzy.Options{Defuzzifier: d})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestDefuzzifiersDiffer(t *testing.T) {
	c := shoulderEngine(t, fuzzy.Centroid)
	m := shoulderEngine(t, fuzzy.MeanOfMaximum)

	// Unclipped right triangle: centroid at 1/3, maximum only at 0.
	if got := infer(t, c, map[string]float64{"x": 0}); math.Abs(got-1.0/3.0) > 1e-3 {
		t.Errorf("centroid = %v, want ~%v", got, 1.0/3.0)
	}
	if got := infer(t, m, map[string]float64{"x": 0}); got != 0 {
		t.Errorf("mean of maximum = %v, want 0", got)
	}

	// Clipped at 0.5: plateau over [0, 0.5].
	if got := infer(t, c, map[string]float64{"x": 0.5}); math.Abs(got-0.38889) > 1e-3 {
		t.Errorf("centroid = %v, want ~0.38889", got)
	}
	if got := infer(t, m, map[string]float64{"x": 0.5}); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("mean of maximum = %v, want 0.25", got)
	}
}

func TestInferErrors(t *testing.T) {
	e := gapEngine(t, fuzzy.Centroid)
	_, err := e.Infer(map[string]float64{"z": 1})
	if !errors.Is(err, fuzzy.ErrMissingInput) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrMissingInput)
	}
	_, err = e.Infer(map[string]float64{"x": math.NaN()})
	if !errors.Is(err, fuzzy.ErrInvalidInput) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrInvalidInput)
	}
}

func TestFiringUsesMin(t *testing.T) {
	f, l, o := threeByTwo(t)
	rules, err := fuzzy.CombinationRules([]*fuzzy.Variable{f, l}, o, func(idx []int) int {
		return min(idx[0]+idx[1], 2)
	})
	if err != nil {
		t.Fatalf("CombinationRules failed: %v", err)
	}
	rb, err := fuzzy.NewRuleBase([]*fuzzy.Variable{f, l}, o, rules)
	if err != nil {
		t.Fatalf("NewRuleBase failed: %v", err)
	}
	e, err := fuzzy.NewEngine(rb, fuzzy.DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	// f=2.5: a=0.5, b=0.5, c=0; l=2.5: s=0.75, t=0.25.
	ws, err := e.Firing(map[string]float64{"f": 2.5, "l": 2.5})
	if err != nil {
		t.Fatalf("Firing failed: %v", err)
	}
	want := []float64{0.5, 0.25, 0.5, 0.25, 0, 0}
	for i := range want {
		if math.Abs(ws[i]-want[i]) > 1e-12 {
			t.Errorf("firing[%d] = %v, want %v", i, ws[i], want[i])
		}
	}

	// lo capped at 0.5, mid at max(0.25, 0.5), hi at 0.25.
	xs, mu, err := e.Aggregate(map[string]float64{"f": 2.5, "l": 2.5})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(xs) != len(mu) || len(xs) != 10001 {
		t.Fatalf("unexpected sampling: %d points, %d values", len(xs), len(mu))
	}
	for i, x := range xs {
		if mu[i] > 0.5+1e-12 {
			t.Fatalf("aggregated membership at %v = %v exceeds largest cap", x, mu[i])
		}
	}
}

func TestNewEngineErrors(t *testing.T) {
	e := gapEngine(t, fuzzy.Centroid)
	rb := e.RuleBase()
	_, err := fuzzy.NewEngine(rb, fuzzy.Options{Defuzzifier: fuzzy.Defuzzifier(7)})
	if !errors.Is(err, fuzzy.ErrInvalidDefuzzifier) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrInvalidDefuzzifier)
	}
	_, err = fuzzy.NewEngine(rb, fuzzy.Options{Resolution: -0.1})
	if !errors.Is(err, fuzzy.ErrInvalidResolution) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrInvalidResolution)
	}
	_, err = fuzzy.NewEngine(rb, fuzzy.Options{Resolution: 2})
	if !errors.Is(err, fuzzy.ErrInvalidResolution) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrInvalidResolution)
	}
	_, err = fuzzy.NewEngine(nil, fuzzy.DefaultOptions())
	if !errors.Is(err, fuzzy.ErrInvalidRuleBase) {
		t.Errorf("error = %v, want %v", err, fuzzy.ErrInvalidRuleBase)
	}
	if got := e.Options().Resolution; got != fuzzy.DefaultResolution {
		t.Errorf("Resolution = %v, want default %v", got, fuzzy.DefaultResolution)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	e := gapEngine(t, fuzzy.MeanOfMaximum)
	c := e.Clone()
	a := infer(t, e, map[string]float64{"x": 1})
	b := infer(t, c, map[string]float64{"x": 9})
	if a == b || infer(t, e, map[string]float64{"x": 1}) != a {
		t.Errorf("clone shares state with original")
	}
}

func TestParseDefuzzifier(t *testing.T) {
	tests := []struct {
		in   string
		want fuzzy.Defuzzifier
		err  bool
	}{
		{in: "centroid", want: fuzzy.Centroid},
		{in: "", want: fuzzy.Centroid},
		{in: "MOM", want: fuzzy.MeanOfMaximum},
		{in: "mean-of-maximum", want: fuzzy.MeanOfMaximum},
		{in: "bisector", err: true},
	}
	for _, tt := range tests {
		got, err := fuzzy.ParseDefuzzifier(tt.in)
		if tt.err {
			if !errors.Is(err, fuzzy.ErrInvalidDefuzzifier) {
				t.Errorf("ParseDefuzzifier(%q) error = %v, want %v", tt.in, err, fuzzy.ErrInvalidDefuzzifier)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDefuzzifier(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	var d fuzzy.Defuzzifier
	if err := d.UnmarshalText([]byte("mom")); err != nil || d != fuzzy.MeanOfMaximum {
		t.Errorf("UnmarshalText(mom) = %v, %v", d, err)
	}
	b, err := fuzzy.MeanOfMaximum.MarshalText()
	if err != nil || string(b) != "mom" {
		t.Errorf("MarshalText = %q, %v, want \"mom\"", b, err)
	}
}
