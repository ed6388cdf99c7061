/*
metrics.go - Prometheus instrumentation for the API surface

Counters only; the engine's operations are bounded in-memory work, so
request counts by outcome are the signal that matters. Scrape at
GET /metrics.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credit_engine",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method, route pattern, and status code.",
}, []string{"method", "route", "status"})

// Metrics counts every request against its resolved chi route pattern
// (e.g. /api/credit-lines/{id}), so counts break down by endpoint
// without a per-id label explosion. The pattern is only complete after
// the request has been routed, hence the read after ServeHTTP.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		})
	}
}
