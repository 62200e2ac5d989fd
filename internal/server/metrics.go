// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// searchRequestsTotal counts completed /api/search requests, partitioned
	// by outcome: "ok", "bad_request", or "error".
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records the wall-clock duration of each
	// /api/search request, embedding call included.
	searchDurationSeconds *prometheus.HistogramVec

	// searchResults records how many results each successful search returned.
	searchResults prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semdex",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /api/search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semdex",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/search requests, embedding call included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semdex",
			Subsystem: "search",
			Name:      "results_returned",
			Help:      "Number of results returned per successful search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semdex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semdex",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrumented wraps h so every request increments the HTTP request counter
// and records its latency under the given handler label.
func (s *Server) instrumented(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		h(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
