package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mw_http_request_latency_seconds",
		Help:    "Latency of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "path", "status"})

	requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mw_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	errorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mw_http_errors_total",
		Help: "Total HTTP 5xx responses",
	}, []string{"method", "path", "status"})
)

// observeRequests records latency and request counters per route. The chi
// route pattern is used as the path label to keep cardinality stable.
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		status := strconv.Itoa(rec.status)

		requestLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		requestCount.WithLabelValues(r.Method, path, status).Inc()
		if rec.status >= 500 {
			errorCount.WithLabelValues(r.Method, path, status).Inc()
		}
	})
}
