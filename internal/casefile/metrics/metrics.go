package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Passes       *prometheus.CounterVec
	PassDuration prometheus.Histogram
	SlotOutcomes *prometheus.CounterVec
	Answers      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Passes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canlaw_case_passes_total",
			Help: "Total orchestration passes by operation and outcome",
		}, []string{"operation", "outcome"}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "canlaw_case_pass_duration_seconds",
			Help:    "Duration of full orchestration passes",
			Buckets: prometheus.DefBuckets,
		}),
		SlotOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canlaw_case_slot_outcomes_total",
			Help: "Per-slot dispositions across orchestration passes",
		}, []string{"disposition"}),
		Answers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canlaw_case_answers_total",
			Help: "Total answers accepted",
		}),
	}
}

func (m *Metrics) ObservePass(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(operation, outcome).Inc()
	m.PassDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementSlotOutcome(disposition string) {
	if m == nil {
		return
	}
	m.SlotOutcomes.WithLabelValues(disposition).Inc()
}

func (m *Metrics) IncrementAnswers() {
	if m == nil {
		return
	}
	m.Answers.Inc()
}
