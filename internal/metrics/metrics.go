// Package metrics exposes Prometheus counters for Klarna calls and order events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes recorded by the order-event dispatcher.
const (
	OutcomeDone    = "done"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Registry owns a private Prometheus registry and the collectors recorded by
// the Klarna client, the order service and the HTTP middleware. All Observe
// methods are no-ops on a nil *Registry, so metrics are optional in tests.
type Registry struct {
	reg *prometheus.Registry

	KlarnaRequests *prometheus.CounterVec
	KlarnaLatency  *prometheus.HistogramVec
	OrderEvents    *prometheus.CounterVec
	OrderLines     prometheus.Histogram
	HTTPRequests   *prometheus.CounterVec
}

// NewRegistry creates a Registry with every collector registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kom_klarna_requests_total",
		Help: "Klarna Order Management API calls by operation and HTTP status.",
	}, []string{"operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kom_klarna_request_seconds",
		Help:    "Klarna Order Management API latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kom_order_events_total",
		Help: "Order events handled by action and outcome.",
	}, []string{"action", "outcome"})
	lines := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kom_order_lines",
		Help:    "Number of Klarna order lines per translated order.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kom_http_requests_total",
		Help: "Inbound HTTP requests by route and status code.",
	}, []string{"route", "code"})

	r.MustRegister(requests, latency, events, lines, httpRequests)
	return &Registry{
		reg:            r,
		KlarnaRequests: requests,
		KlarnaLatency:  latency,
		OrderEvents:    events,
		OrderLines:     lines,
		HTTPRequests:   httpRequests,
	}
}

// ObserveKlarna records one Klarna call. status is the HTTP status code,
// or 0 when the request never got a response ("error").
func (r *Registry) ObserveKlarna(operation string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.KlarnaRequests.WithLabelValues(operation, label).Inc()
	r.KlarnaLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveEvent records the outcome of a dispatched order action.
func (r *Registry) ObserveEvent(action, outcome string) {
	if r == nil {
		return
	}
	r.OrderEvents.WithLabelValues(action, outcome).Inc()
}

// ObserveLines records the size of a translated order.
func (r *Registry) ObserveLines(n int) {
	if r == nil {
		return
	}
	r.OrderLines.Observe(float64(n))
}

// ObserveHTTP records one inbound request. route is the matched mux pattern.
func (r *Registry) ObserveHTTP(route string, code int) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format for GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
