package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"

	"example.com/string-tuner/base/metrics"
	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/instrument"
	"example.com/string-tuner/core/tuning"
)

const (
	// Upper bounds applied to tune requests.
	maxRequestBytes   = 1 << 20
	maxTimeLimit      = 30 * time.Second
	maxMaxIterations  = 10_000
	readHeaderTimeout = 5 * time.Second
)

var (
	errInvalidRequest = errors.New("invalid request")

	serverMtrcs atomic.Pointer[serverMetrics]
)

type serverMetrics struct {
	reqsServed   *prometheus.CounterVec
	reqsRejected *prometheus.CounterVec
}

func init() {
	serverMtrcs.Store(&serverMetrics{
		reqsServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ServerReqsServedN,
			Help: metrics.ServerReqsServedH,
		}, []string{"endpoint"}),
		reqsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ServerReqsRejectedN,
			Help: metrics.ServerReqsRejectedH,
		}, []string{"endpoint"}),
	})
}

// Server answers turn and tune requests over HTTP. Every request works on
// its own clone of the configured advisors.
type Server struct {
	log      *zap.Logger
	advisors map[fuzzy.Defuzzifier]*tuning.Advisor
	defuzz   fuzzy.Defuzzifier
	opts     tuning.Options
}

func New(log *zap.Logger, engOpts fuzzy.Options, opts tuning.Options) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:      log,
		advisors: make(map[fuzzy.Defuzzifier]*tuning.Advisor),
		defuzz:   engOpts.Defuzzifier,
		opts:     opts,
	}
	for _, d := range []fuzzy.Defuzzifier{fuzzy.Centroid, fuzzy.MeanOfMaximum} {
		o := engOpts
		o.Defuzzifier = d
		adv, err := tuning.NewAdvisor(o)
		if err != nil {
			return nil, err
		}
		s.advisors[d] = adv
	}
	return s, nil
}

func (s *Server) advisor(name string) (*tuning.Advisor, error) {
	d := s.defuzz
	if name != "" {
		var err error
		d, err = fuzzy.ParseDefuzzifier(name)
		if err != nil {
			return nil, err
		}
	}
	return s.advisors[d].Clone(), nil
}

func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/turn", s.turn).Methods("GET")
	r.HandleFunc("/tune", s.tune).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// Handler returns the router wrapped in an access log written to the
// server's logger.
func (s *Server) Handler() http.Handler {
	w := zap.NewStdLog(s.log.Named("http")).Writer()
	return handlers.LoggingHandler(w, s.NewRouter())
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	s.log.Info("serving", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) reject(w http.ResponseWriter, endpoint string, err error) {
	serverMtrcs.Load().reqsRejected.WithLabelValues(endpoint).Inc()
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	serverMtrcs.Load().reqsServed.WithLabelValues("health").Inc()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type turnResponse struct {
	Target      float64 `json:"target"`
	Current     float64 `json:"current"`
	Length      float64 `json:"length"`
	Defuzzifier string  `json:"defuzzifier"`
	Turn        float64 `json:"turn"`
}

func queryFloat(r *http.Request, key string) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, fmt.Errorf("missing %s: %w", key, errInvalidRequest)
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%s: %w", key, errInvalidRequest)
	}
	return x, nil
}

func (s *Server) turn(w http.ResponseWriter, r *http.Request) {
	var vals [3]float64
	for i, key := range []string{"target", "current", "length"} {
		x, err := queryFloat(r, key)
		if err != nil {
			s.reject(w, "turn", err)
			return
		}
		vals[i] = x
	}
	adv, err := s.advisor(r.URL.Query().Get("defuzz"))
	if err != nil {
		s.reject(w, "turn", err)
		return
	}
	t, err := adv.Turn(vals[0], vals[1], vals[2])
	if err != nil {
		s.reject(w, "turn", err)
		return
	}
	serverMtrcs.Load().reqsServed.WithLabelValues("turn").Inc()
	writeJSON(w, http.StatusOK, turnResponse{
		Target:      vals[0],
		Current:     vals[1],
		Length:      vals[2],
		Defuzzifier: adv.Engine().Options().Defuzzifier.String(),
		Turn:        t,
	})
}

// TuneRequest selects an instrument by preset or by explicit per-string
// arrays. Omitted options fall back to the server's configuration.
type TuneRequest struct {
	Preset           string    `json:"preset,omitempty"`
	ScaleLength      float64   `json:"scale_length,omitempty"`
	Targets          []float64 `json:"targets,omitempty"`
	Lengths          []float64 `json:"lengths,omitempty"`
	ElasticModuli    []float64 `json:"elastic_moduli,omitempty"`
	Densities        []float64 `json:"densities,omitempty"`
	StartFrequencies []float64 `json:"start_frequencies,omitempty"`

	Defuzzifier   string   `json:"defuzzifier,omitempty"`
	ToleranceHz   *float64 `json:"tolerance_hz,omitempty"`
	TimeLimit     string   `json:"time_limit,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
}

type TuneResponse struct {
	RunID       string      `json:"run_id"`
	Instrument  string      `json:"instrument"`
	State       string      `json:"state"`
	Iterations  int         `json:"iterations"`
	ElapsedMS   float64     `json:"elapsed_ms"`
	Targets     []float64   `json:"targets"`
	Frequencies []float64   `json:"frequencies"`
	Turns       [][]float64 `json:"turns"`
	Error       string      `json:"error,omitempty"`
}

func (req *TuneRequest) newInstrument() (*instrument.Instrument, error) {
	var spec instrument.Spec
	if len(req.Targets) != 0 {
		spec = instrument.Spec{
			Name:          "custom",
			Targets:       req.Targets,
			Lengths:       req.Lengths,
			ElasticModuli: req.ElasticModuli,
			Densities:     req.Densities,
		}
	} else {
		name := req.Preset
		if name == "" {
			name = instrument.ClassicalGuitar.String()
		}
		p, err := instrument.ParsePreset(name)
		if err != nil {
			return nil, err
		}
		spec, err = instrument.PresetSpec(p, req.ScaleLength)
		if err != nil {
			return nil, err
		}
	}
	in, err := instrument.New(spec)
	if err != nil {
		return nil, err
	}
	if len(req.StartFrequencies) != 0 {
		if len(req.StartFrequencies) != in.Len() {
			return nil, fmt.Errorf("%d start frequencies for %d strings: %w",
				len(req.StartFrequencies), in.Len(), instrument.ErrMismatchedArrays)
		}
		for i, f := range req.StartFrequencies {
			err = in.SetFrequency(i, f)
			if err != nil {
				return nil, err
			}
		}
	}
	return in, nil
}

func (s *Server) tuneOptions(req *TuneRequest) (tuning.Options, error) {
	opts := s.opts
	if req.ToleranceHz != nil {
		opts.ToleranceHz = *req.ToleranceHz
	}
	if req.TimeLimit != "" {
		d, err := time.ParseDuration(req.TimeLimit)
		if err != nil {
			return tuning.Options{}, fmt.Errorf("time_limit: %w", errInvalidRequest)
		}
		opts.TimeLimit = d
	}
	if req.MaxIterations != nil {
		opts.MaxIterations = *req.MaxIterations
	}
	if opts.TimeLimit <= 0 || opts.TimeLimit > maxTimeLimit {
		opts.TimeLimit = maxTimeLimit
	}
	if opts.MaxIterations <= 0 || opts.MaxIterations > maxMaxIterations {
		opts.MaxIterations = maxMaxIterations
	}
	return opts, nil
}

func (s *Server) tune(w http.ResponseWriter, r *http.Request) {
	var req TuneRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(&req)
	if err != nil {
		s.reject(w, "tune", fmt.Errorf("%w: %w", errInvalidRequest, err))
		return
	}
	in, err := req.newInstrument()
	if err != nil {
		s.reject(w, "tune", err)
		return
	}
	opts, err := s.tuneOptions(&req)
	if err != nil {
		s.reject(w, "tune", err)
		return
	}
	adv, err := s.advisor(req.Defuzzifier)
	if err != nil {
		s.reject(w, "tune", err)
		return
	}

	runID := uuid.New().String()
	c := tuning.Controller{
		Log:     s.log.With(zap.String("run", runID)),
		Advisor: adv,
	}
	res, err := c.Tune(r.Context(), in, opts)
	if err != nil && !errors.Is(err, tuning.ErrTimedOut) {
		s.reject(w, "tune", err)
		return
	}
	resp := TuneResponse{
		RunID:       runID,
		Instrument:  in.Name(),
		State:       res.State.String(),
		Iterations:  res.Iterations,
		ElapsedMS:   float64(res.Elapsed.Microseconds()) / 1e3,
		Targets:     in.Targets(),
		Frequencies: res.Frequencies,
		Turns:       res.Turns,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	serverMtrcs.Load().reqsServed.WithLabelValues("tune").Inc()
	writeJSON(w, http.StatusOK, resp)
}
