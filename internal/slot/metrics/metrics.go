package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SlotCacheHits   prometheus.Counter
	SlotCacheMisses prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SlotCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canlaw_slot_cache_hits_total",
			Help: "Total number of slot registry cache hits",
		}),
		SlotCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canlaw_slot_cache_misses_total",
			Help: "Total number of slot registry cache misses",
		}),
	}
}

func (m *Metrics) IncrementCacheHits() {
	if m == nil {
		return
	}
	m.SlotCacheHits.Inc()
}

func (m *Metrics) IncrementCacheMisses() {
	if m == nil {
		return
	}
	m.SlotCacheMisses.Inc()
}
