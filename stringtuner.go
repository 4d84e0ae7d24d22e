// Fuzzy string tuner

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/string-tuner/benchmark"

	"example.com/string-tuner/core/config"
	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/server"
	"example.com/string-tuner/core/surface"
	"example.com/string-tuner/core/tuning"

	"example.com/string-tuner/driver/graph"
)

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func runMonitor(log *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, mux)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func loadConfig(configFile string) config.Config {
	if configFile == "" {
		return config.Config{}
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.String("file", configFile), zap.Error(err))
	}
	return cfg
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

type overrides struct {
	preset        string
	defuzz        fuzzy.Defuzzifier
	tolerance     float64
	timeout       time.Duration
	maxIterations int
}

// apply copies the flags given on the command line over cfg.
func (o *overrides) apply(cfg *config.Config, set map[string]bool) {
	if set["preset"] {
		cfg.Preset = o.preset
		cfg.Targets, cfg.Lengths, cfg.ElasticModuli, cfg.Densities = nil, nil, nil, nil
	}
	if set["defuzz"] {
		cfg.Engine.Defuzzifier = o.defuzz
	}
	if set["tolerance"] {
		cfg.Tuning.ToleranceHz = &o.tolerance
	}
	if set["timeout"] {
		cfg.Tuning.TimeLimit = o.timeout.String()
	}
	if set["max-iterations"] {
		cfg.Tuning.MaxIterations = &o.maxIterations
	}
}

func engineOptions(cfg config.Config) fuzzy.Options {
	opts, err := cfg.EngineOptions()
	if err != nil {
		log.Fatal("invalid engine configuration", zap.Error(err))
	}
	return opts
}

func tuningOptions(cfg config.Config) tuning.Options {
	opts, err := cfg.TuningOptions()
	if err != nil {
		log.Fatal("invalid tuning configuration", zap.Error(err))
	}
	return opts
}

func newAdvisor(cfg config.Config) *tuning.Advisor {
	adv, err := tuning.NewAdvisor(engineOptions(cfg))
	if err != nil {
		log.Fatal("failed to create inference engine", zap.Error(err))
	}
	return adv
}

func formatFloats(xs []float64, prec int) string {
	var b strings.Builder
	for i, x := range xs {
		if i != 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.*f", prec, x)
	}
	return b.String()
}

func runTune(cfg config.Config, plotFile string) {
	spec, err := cfg.InstrumentSpec()
	if err != nil {
		log.Fatal("invalid instrument configuration", zap.Error(err))
	}
	in, err := instrument.New(spec)
	if err != nil {
		log.Fatal("failed to create instrument", zap.Error(err))
	}
	opts := tuningOptions(cfg)

	var rec graph.Recorder
	c := tuning.Controller{
		Log:     log,
		Advisor: newAdvisor(cfg),
		Hooks:   tuning.Hooks{Graph: rec.Record},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	res, err := c.Tune(ctx, in, opts)
	if err != nil && !errors.Is(err, tuning.ErrTimedOut) {
		log.Fatal("failed to tune instrument", zap.Error(err))
	}

	for k, turns := range res.Turns {
		fmt.Printf("%4d  %s\n", k+1, formatFloats(turns, 4))
	}
	fmt.Printf("state: %v, iterations: %d, elapsed: %v\n", res.State, res.Iterations, res.Elapsed)
	fmt.Printf("targets:     %s\n", formatFloats(in.Targets(), 2))
	fmt.Printf("frequencies: %s\n", formatFloats(res.Frequencies, 2))
	if err != nil {
		log.Info("tuning did not converge", zap.Error(err))
	}

	if plotFile != "" && res.Iterations != 0 {
		writePlot(&rec, plotFile, in)
	}
	if res.State != tuning.Converged {
		os.Exit(2)
	}
}

func writePlot(rec *graph.Recorder, plotFile string, in *instrument.Instrument) {
	f, err := os.Create(plotFile)
	if err != nil {
		log.Fatal("failed to create file", zap.String("file", plotFile), zap.Error(err))
	}
	err = rec.WritePDF(f, in.Name(), in.Targets())
	if err != nil {
		log.Fatal("failed to write plot", zap.String("file", plotFile), zap.Error(err))
	}
	err = f.Close()
	if err != nil {
		log.Fatal("failed to close file", zap.String("file", plotFile), zap.Error(err))
	}
}

func runTurn(cfg config.Config, target, current, length float64) {
	t, err := newAdvisor(cfg).Turn(target, current, length)
	if err != nil {
		log.Fatal("failed to infer turn", zap.Error(err))
	}
	fmt.Printf("%.6f\n", t)
}

func runTable(cfg config.Config, outFile string) {
	tc := cfg.TableGrid()
	g := surface.DefaultGrid()
	g.FreqSteps, g.LengthSteps = tc.FreqSteps, tc.LengthSteps

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	t0 := time.Now()
	tab, err := surface.Compute(ctx, newAdvisor(cfg), g, tc.Workers)
	if err != nil {
		log.Fatal("failed to compute lookup table", zap.Error(err))
	}
	log.Debug("computed lookup table",
		zap.Int("cells", g.FreqSteps*g.LengthSteps),
		zap.Duration("elapsed", time.Since(t0)))

	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			log.Fatal("failed to create file", zap.String("file", outFile), zap.Error(err))
		}
		defer f.Close()
		w = f
	}
	err = tab.WriteCSV(w)
	if err != nil {
		log.Fatal("failed to write lookup table", zap.Error(err))
	}
}

func runServer(cfg config.Config) {
	s, err := server.New(log, engineOptions(cfg), tuningOptions(cfg))
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err = s.ListenAndServe(ctx, cfg.ListenAddr())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("failed to serve", zap.Error(err))
	}
}

func runBenchmark(cfg config.Config, preset string, runs, workers int, seed uint64, monitorAddr string) {
	p, err := instrument.ParsePreset(preset)
	if err != nil {
		log.Fatal("invalid preset", zap.Error(err))
	}
	if monitorAddr != "" {
		go runMonitor(log, monitorAddr)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	r, err := benchmark.Run(ctx, log, benchmark.Options{
		Preset:  p,
		Runs:    runs,
		Workers: workers,
		Seed:    seed,
		Engine:  engineOptions(cfg),
		Tuning:  tuningOptions(cfg),
	})
	if err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
	r.Print(os.Stdout)
}

func exitWithUsage() {
	fmt.Println("usage: stringtuner tune|turn|table|serve|benchmark [flags]")
	os.Exit(1)
}

func main() {
	var (
		verbose     bool
		configFile  string
		o           overrides
		plotFile    string
		outFile     string
		target      float64
		current     float64
		length      float64
		freqSteps   int
		lengthSteps int
		workers     int
		runs        int
		seed        uint64
		monitorAddr string
	)

	tuneFlags := flag.NewFlagSet("tune", flag.ExitOnError)
	turnFlags := flag.NewFlagSet("turn", flag.ExitOnError)
	tableFlags := flag.NewFlagSet("table", flag.ExitOnError)
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	tuneFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	tuneFlags.StringVar(&configFile, "config", "", "Config file")
	tuneFlags.StringVar(&o.preset, "preset", "", "Instrument preset")
	tuneFlags.TextVar(&o.defuzz, "defuzz", fuzzy.Centroid, "Defuzzification method (centroid, mom)")
	tuneFlags.Float64Var(&o.tolerance, "tolerance", tuning.DefaultToleranceHz, "Tolerance in Hz")
	tuneFlags.DurationVar(&o.timeout, "timeout", config.DefaultTimeLimit, "Time limit, 0 for none")
	tuneFlags.IntVar(&o.maxIterations, "max-iterations", config.DefaultMaxIterations, "Iteration limit, 0 for none")
	tuneFlags.StringVar(&plotFile, "plot", "", "PDF output file")

	turnFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	turnFlags.TextVar(&o.defuzz, "defuzz", fuzzy.Centroid, "Defuzzification method (centroid, mom)")
	turnFlags.Float64Var(&target, "target", 0, "Target frequency in Hz")
	turnFlags.Float64Var(&current, "current", 0, "Current frequency in Hz")
	turnFlags.Float64Var(&length, "length", 0, "Current string length in m")

	tableFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	tableFlags.StringVar(&configFile, "config", "", "Config file")
	tableFlags.TextVar(&o.defuzz, "defuzz", fuzzy.Centroid, "Defuzzification method (centroid, mom)")
	tableFlags.IntVar(&freqSteps, "freq-steps", config.DefaultTableFreqSteps, "Number of frequency difference samples")
	tableFlags.IntVar(&lengthSteps, "length-steps", config.DefaultTableLengthSteps, "Number of string length samples")
	tableFlags.IntVar(&workers, "workers", config.DefaultTableWorkers, "Number of workers, 0 for GOMAXPROCS")
	tableFlags.StringVar(&outFile, "out", "", "CSV output file")

	serveFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	serveFlags.StringVar(&configFile, "config", "", "Config file")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")
	benchmarkFlags.StringVar(&o.preset, "preset", config.DefaultPreset, "Instrument preset")
	benchmarkFlags.TextVar(&o.defuzz, "defuzz", fuzzy.Centroid, "Defuzzification method (centroid, mom)")
	benchmarkFlags.IntVar(&runs, "runs", 1000, "Number of tuning runs")
	benchmarkFlags.IntVar(&workers, "workers", 0, "Number of workers, 0 for GOMAXPROCS")
	benchmarkFlags.Uint64Var(&seed, "seed", 1, "Random seed")
	benchmarkFlags.StringVar(&monitorAddr, "monitor", "", "Metrics listen address")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case tuneFlags.Name():
		err := tuneFlags.Parse(os.Args[2:])
		if err != nil || tuneFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		cfg := loadConfig(configFile)
		o.apply(&cfg, setFlags(tuneFlags))
		runTune(cfg, plotFile)
	case turnFlags.Name():
		err := turnFlags.Parse(os.Args[2:])
		if err != nil || turnFlags.NArg() != 0 {
			exitWithUsage()
		}
		set := setFlags(turnFlags)
		if !set["target"] || !set["current"] || !set["length"] {
			exitWithUsage()
		}
		initLogger(verbose)
		var cfg config.Config
		o.apply(&cfg, set)
		runTurn(cfg, target, current, length)
	case tableFlags.Name():
		err := tableFlags.Parse(os.Args[2:])
		if err != nil || tableFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		cfg := loadConfig(configFile)
		set := setFlags(tableFlags)
		o.apply(&cfg, set)
		if set["freq-steps"] {
			cfg.Table.FreqSteps = freqSteps
		}
		if set["length-steps"] {
			cfg.Table.LengthSteps = lengthSteps
		}
		if set["workers"] {
			cfg.Table.Workers = workers
		}
		runTable(cfg, outFile)
	case serveFlags.Name():
		err := serveFlags.Parse(os.Args[2:])
		if err != nil || serveFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		runServer(loadConfig(configFile))
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		cfg := loadConfig(configFile)
		o.apply(&cfg, setFlags(benchmarkFlags))
		runBenchmark(cfg, o.preset, runs, workers, seed, monitorAddr)
	default:
		exitWithUsage()
	}
}
