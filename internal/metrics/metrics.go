// Package metrics exposes Prometheus collectors for the ledger service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors recorded by the HTTP layer and the engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	ledgerOps     *prometheus.CounterVec
	ledgerOpFails *prometheus.CounterVec
}

// New creates a metrics bundle with its own registry.
func New(service string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	labels := prometheus.Labels{"service": service}
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fa2_http_requests_total",
		Help:        "HTTP requests by method, path and status.",
		ConstLabels: labels,
	}, []string{"method", "path", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "fa2_http_request_duration_seconds",
		Help:        "HTTP request latency.",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"method", "path"})
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "fa2_http_in_flight_requests",
		Help:        "HTTP requests currently being served.",
		ConstLabels: labels,
	})
	m.ledgerOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fa2_ledger_operations_total",
		Help:        "Ledger operations by kind.",
		ConstLabels: labels,
	}, []string{"operation"})
	m.ledgerOpFails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fa2_ledger_operation_failures_total",
		Help:        "Rejected or failed ledger operations by kind.",
		ConstLabels: labels,
	}, []string{"operation"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.inFlight, m.ledgerOps, m.ledgerOpFails)
	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordLedgerOperation counts one ledger operation and whether it failed.
func (m *Metrics) RecordLedgerOperation(operation string, failed bool) {
	m.ledgerOps.WithLabelValues(operation).Inc()
	if failed {
		m.ledgerOpFails.WithLabelValues(operation).Inc()
	}
}

// Handler exposes the registry for a /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
