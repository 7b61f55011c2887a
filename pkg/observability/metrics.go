package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream agent metrics
	AgentCallsTotal   *prometheus.CounterVec
	AgentCallDuration *prometheus.HistogramVec
	AgentErrorsTotal  *prometheus.CounterVec

	// Audit metrics
	AuditEntriesTotal      *prometheus.CounterVec
	AuditWriteFailuresTotal prometheus.Counter

	// Authorization metrics
	PermissionDenialsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opschat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opschat_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AgentCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opschat_agent_calls_total",
				Help: "Total number of upstream agent calls",
			},
			[]string{"provider", "operation", "status"},
		),
		AgentCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opschat_agent_call_duration_seconds",
				Help:    "Upstream agent call duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "operation"},
		),
		AgentErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opschat_agent_errors_total",
				Help: "Total number of upstream agent failures",
			},
			[]string{"provider", "operation"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opschat_audit_entries_total",
				Help: "Total number of audit log entries recorded",
			},
			[]string{"kind", "provider"},
		),
		AuditWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "opschat_audit_write_failures_total",
				Help: "Audit log writes that failed and were suppressed",
			},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opschat_permission_denials_total",
				Help: "Requests rejected by permission or provider-access checks",
			},
			[]string{"check"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AgentCallsTotal,
		m.AgentCallDuration,
		m.AgentErrorsTotal,
		m.AuditEntriesTotal,
		m.AuditWriteFailuresTotal,
		m.PermissionDenialsTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveAgentCall records one upstream agent call.
func (m *Metrics) ObserveAgentCall(provider, operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		m.AgentErrorsTotal.WithLabelValues(provider, operation).Inc()
	}
	m.AgentCallsTotal.WithLabelValues(provider, operation, status).Inc()
	m.AgentCallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
