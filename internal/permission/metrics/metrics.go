package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for permission traffic.
type Metrics struct {
	Checks          *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	Invalidations   prometheus.Counter
	CheckDurationMs prometheus.Histogram
}

// New registers and returns permission metrics collectors.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailhead_permission_checks_total",
			Help: "Total number of permission checks by verdict source and outcome",
		}, []string{"source", "outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailhead_permission_cache_hits_total",
			Help: "Total number of permission checks served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailhead_permission_cache_misses_total",
			Help: "Total number of permission checks that went to the backend",
		}),
		Invalidations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailhead_permission_cache_invalidations_total",
			Help: "Total number of full cache invalidations",
		}),
		CheckDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailhead_permission_check_duration_ms",
			Help:    "Duration of backend permission round-trips in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}
