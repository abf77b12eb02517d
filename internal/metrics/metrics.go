// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BackendRequests counts calls to the external servlets.
	BackendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathernow_backend_requests_total",
			Help: "Backend calls by endpoint, method and outcome.",
		},
		[]string{"endpoint", "method", "outcome"},
	)

	// Searches counts finished searches by terminal state.
	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathernow_searches_total",
			Help: "Searches by terminal state (rendered, error, stale).",
		},
		[]string{"state"},
	)

	// SessionsSwept counts sessions removed by the sweeper.
	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weathernow_sessions_swept_total",
			Help: "Expired sessions removed by the background sweeper.",
		},
	)
)

func init() {
	prometheus.MustRegister(BackendRequests, Searches, SessionsSwept)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
