package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for guard decisions.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	EvaluateDurationMs prometheus.Histogram
}

// New registers and returns guard metrics collectors.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailhead_guard_decisions_total",
			Help: "Total number of guard evaluations by resulting state",
		}, []string{"state"}),
		EvaluateDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailhead_guard_evaluate_duration_ms",
			Help:    "Duration of guard evaluations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}
