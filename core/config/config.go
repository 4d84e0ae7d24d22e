package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/tuning"
)

const (
	// DefaultPreset is used when neither a preset nor explicit per-string
	// arrays are configured.
	DefaultPreset = "classical-guitar"

	DefaultTimeLimit     = 10 * time.Second
	DefaultMaxIterations = 100

	DefaultListenAddr = "127.0.0.1:8080"

	// Lookup table grid. Zero workers selects GOMAXPROCS.
	DefaultTableWorkers     = 0
	DefaultTableFreqSteps   = 100
	DefaultTableLengthSteps = 50
)

var ErrInvalidConfig = errors.New("invalid configuration")

type TuningConfig struct {
	ToleranceHz   *float64 `toml:"tolerance_hz,omitempty"`
	TimeLimit     string   `toml:"time_limit,omitempty"`
	MaxIterations *int     `toml:"max_iterations,omitempty"`
}

type EngineConfig struct {
	Defuzzifier fuzzy.Defuzzifier `toml:"defuzzifier,omitempty"`
	Resolution  float64           `toml:"resolution,omitempty"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_address,omitempty"`
}

type TableConfig struct {
	Workers     int `toml:"workers,omitempty"`
	FreqSteps   int `toml:"freq_steps,omitempty"`
	LengthSteps int `toml:"length_steps,omitempty"`
}

type Config struct {
	Preset        string    `toml:"preset,omitempty"`
	ScaleLength   float64   `toml:"scale_length,omitempty"`
	Targets       []float64 `toml:"targets,omitempty"`
	Lengths       []float64 `toml:"lengths,omitempty"`
	ElasticModuli []float64 `toml:"elastic_moduli,omitempty"`
	Densities     []float64 `toml:"densities,omitempty"`

	Tuning TuningConfig `toml:"tuning,omitempty"`
	Engine EngineConfig `toml:"engine,omitempty"`
	Server ServerConfig `toml:"server,omitempty"`
	Table  TableConfig  `toml:"table,omitempty"`
}

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return decode(raw)
}

func Decode(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	return decode(raw)
}

func decode(raw []byte) (Config, error) {
	var cfg Config
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c Config) explicit() bool {
	return len(c.Targets) != 0 || len(c.Lengths) != 0 ||
		len(c.ElasticModuli) != 0 || len(c.Densities) != 0
}

// InstrumentSpec returns the explicit per-string arrays if any is given,
// otherwise the configured preset.
func (c Config) InstrumentSpec() (instrument.Spec, error) {
	if c.explicit() {
		if c.Preset != "" {
			return instrument.Spec{}, fmt.Errorf("preset %q and explicit strings: %w",
				c.Preset, ErrInvalidConfig)
		}
		spec := instrument.Spec{
			Name:          "custom",
			Targets:       c.Targets,
			Lengths:       c.Lengths,
			ElasticModuli: c.ElasticModuli,
			Densities:     c.Densities,
		}
		return spec, spec.Check()
	}
	name := c.Preset
	if name == "" {
		name = DefaultPreset
	}
	p, err := instrument.ParsePreset(name)
	if err != nil {
		return instrument.Spec{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return instrument.PresetSpec(p, c.ScaleLength)
}

func (c Config) TuningOptions() (tuning.Options, error) {
	opts := tuning.Options{
		ToleranceHz:   tuning.DefaultToleranceHz,
		TimeLimit:     DefaultTimeLimit,
		MaxIterations: DefaultMaxIterations,
	}
	if c.Tuning.ToleranceHz != nil {
		opts.ToleranceHz = *c.Tuning.ToleranceHz
	}
	if c.Tuning.TimeLimit != "" {
		d, err := time.ParseDuration(c.Tuning.TimeLimit)
		if err != nil {
			return tuning.Options{}, fmt.Errorf("time_limit: %w: %w", ErrInvalidConfig, err)
		}
		opts.TimeLimit = d
	}
	if c.Tuning.MaxIterations != nil {
		opts.MaxIterations = *c.Tuning.MaxIterations
	}
	if !(opts.ToleranceHz >= 0) || opts.TimeLimit < 0 || opts.MaxIterations < 0 {
		return tuning.Options{}, fmt.Errorf("tolerance %g, time limit %v, max iterations %d: %w",
			opts.ToleranceHz, opts.TimeLimit, opts.MaxIterations, ErrInvalidConfig)
	}
	return opts, nil
}

func (c Config) EngineOptions() (fuzzy.Options, error) {
	if c.Engine.Resolution < 0 {
		return fuzzy.Options{}, fmt.Errorf("resolution %g: %w", c.Engine.Resolution, ErrInvalidConfig)
	}
	opts := fuzzy.DefaultOptions()
	opts.Defuzzifier = c.Engine.Defuzzifier
	if c.Engine.Resolution != 0 {
		opts.Resolution = c.Engine.Resolution
	}
	return opts, nil
}

func (c Config) ListenAddr() string {
	if c.Server.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.Server.ListenAddr
}

func (c Config) TableGrid() TableConfig {
	t := c.Table
	if t.FreqSteps <= 0 {
		t.FreqSteps = DefaultTableFreqSteps
	}
	if t.LengthSteps <= 0 {
		t.LengthSteps = DefaultTableLengthSteps
	}
	if t.Workers < 0 {
		t.Workers = DefaultTableWorkers
	}
	return t
}
