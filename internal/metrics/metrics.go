// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconciliation results.
const (
	ResultOK           = "ok"
	ResultNoAssignment = "no_valid_assignments"
	ResultNotFound     = "not_found"
	ResultError        = "error"
)

var (
	// Reconciliations counts split reconciliation runs by result.
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billsplitter_reconciliations_total",
		Help: "Split reconciliation runs by result.",
	}, []string{"result"})

	// Reminders counts reminder deliveries by outcome.
	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billsplitter_reminders_total",
		Help: "Payment reminders by delivery outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billsplitter_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
