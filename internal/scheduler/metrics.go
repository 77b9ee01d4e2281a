package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's prometheus collectors
type Metrics struct {
	Ticks        prometheus.Counter
	Deliveries   *prometheus.CounterVec
	Contention   prometheus.Counter
	TickDuration prometheus.Histogram
}

// NewMetrics registers the scheduler collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "inboxpilot_scheduler_ticks_total",
			Help: "Total number of scheduler ticks",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_deliveries_total",
			Help: "Enrollments processed, by outcome",
		}, []string{"outcome"}),
		Contention: factory.NewCounter(prometheus.CounterOpts{
			Name: "inboxpilot_claim_contention_total",
			Help: "Due enrollments skipped because another worker held the claim",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inboxpilot_tick_duration_seconds",
			Help:    "Duration of scheduler ticks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
