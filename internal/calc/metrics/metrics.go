package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Evaluations *prometheus.CounterVec
	Duration    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canlaw_calc_evaluations_total",
			Help: "Total slot evaluations by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "canlaw_calc_evaluation_duration_seconds",
			Help:    "Duration of single slot evaluations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveEvaluation(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(strategy, outcome).Inc()
	m.Duration.Observe(elapsed.Seconds())
}
