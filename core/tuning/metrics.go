package tuning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/string-tuner/base/metrics"
)

type tuningMetrics struct {
	iterations prometheus.Counter
	runs       *prometheus.CounterVec
	residual   prometheus.Gauge
	turns      prometheus.Counter
}

func newTuningMetrics() *tuningMetrics {
	return &tuningMetrics{
		iterations: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.TuningIterationsN,
			Help: metrics.TuningIterationsH,
		}),
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TuningRunsN,
			Help: metrics.TuningRunsH,
		}, []string{"state"}),
		residual: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.TuningResidualN,
			Help: metrics.TuningResidualH,
		}),
		turns: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.TuningTurnsN,
			Help: metrics.TuningTurnsH,
		}),
	}
}
