package instrument

import (
	"fmt"
	"strings"
)

type Preset int

const (
	ClassicalGuitar Preset = iota
	Harp36
)

var presetNames = []string{
	ClassicalGuitar: "classical-guitar",
	Harp36:          "harp-36",
}

func (p Preset) String() string {
	if p < 0 || int(p) >= len(presetNames) {
		return fmt.Sprintf("Preset(%d)", int(p))
	}
	return presetNames[p]
}

func Presets() []Preset {
	return []Preset{ClassicalGuitar, Harp36}
}

func ParsePreset(name string) (Preset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range presetNames {
		if n == s {
			return Preset(i), nil
		}
	}
	switch n {
	case "guitar":
		return ClassicalGuitar, nil
	case "harp":
		return Harp36, nil
	}
	return 0, fmt.Errorf("unknown preset %q", name)
}

const (
	DefaultGuitarScaleLength = 0.65

	// Nylon 6,6.
	nylonElasticModulus = 2.93e9
	nylonDensity        = 1140.0

	silverElasticModulus = 83e9
	silverDensity        = 10503.0
)

// Standard tuning, high E first.
var guitarFrequencies = []float64{329.63, 246.94, 196.00, 146.83, 110.00, 82.41}

// Highest string first.
var harpFrequencies = []float64{
	1864.655, 1760.000, 1567.982, 1396.913, 1318.510, 1174.659,
	1046.502, 932.328, 880.000, 783.991, 698.456, 659.255,
	587.330, 523.251, 466.164, 440.000, 391.995, 349.228,
	329.628, 293.665, 261.626, 233.082, 220.000, 195.998,
	174.614, 164.814, 146.832, 130.813, 116.541, 110.000,
	97.999, 87.307, 82.407, 73.416, 65.406, 58.270,
}

var harpLengths = []float64{
	0.080, 0.100, 0.123, 0.145, 0.165, 0.175,
	0.190, 0.225, 0.240, 0.260, 0.275, 0.295,
	0.315, 0.330, 0.348, 0.370, 0.390, 0.415,
	0.445, 0.477, 0.510, 0.545, 0.585, 0.628,
	0.675, 0.728, 0.785, 0.850, 0.900, 0.950,
	1.000, 1.045, 1.090, 1.130, 1.168, 1.205,
}

func fill(n int, v float64) []float64 {
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = v
	}
	return vs
}

// PresetSpec returns the per-string arrays of p. scaleLength overrides the
// guitar's uniform string length when positive; the harp ignores it.
func PresetSpec(p Preset, scaleLength float64) (Spec, error) {
	switch p {
	case ClassicalGuitar:
		if scaleLength <= 0 {
			scaleLength = DefaultGuitarScaleLength
		}
		n := len(guitarFrequencies)
		return Spec{
			Name:          p.String(),
			Targets:       append([]float64(nil), guitarFrequencies...),
			Lengths:       fill(n, scaleLength),
			ElasticModuli: fill(n, nylonElasticModulus),
			Densities:     fill(n, nylonDensity),
		}, nil
	case Harp36:
		n := len(harpFrequencies)
		return Spec{
			Name:          p.String(),
			Targets:       append([]float64(nil), harpFrequencies...),
			Lengths:       append([]float64(nil), harpLengths...),
			ElasticModuli: fill(n, silverElasticModulus),
			Densities:     fill(n, silverDensity),
		}, nil
	default:
		return Spec{}, fmt.Errorf("unknown preset %v", p)
	}
}

func NewPreset(p Preset, scaleLength float64) (*Instrument, error) {
	spec, err := PresetSpec(p, scaleLength)
	if err != nil {
		return nil, err
	}
	return New(spec)
}
