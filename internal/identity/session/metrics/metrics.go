package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for session operations.
type Metrics struct {
	Hydrations    *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Logouts       prometheus.Counter
}

// New registers and returns session metrics collectors.
func New() *Metrics {
	return &Metrics{
		Hydrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailhead_session_hydrations_total",
			Help: "Total number of session hydration attempts by outcome",
		}, []string{"outcome"}),
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailhead_session_logins_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailhead_session_registrations_total",
			Help: "Total number of registration attempts by outcome",
		}, []string{"outcome"}),
		Logouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailhead_session_logouts_total",
			Help: "Total number of logouts",
		}),
	}
}
