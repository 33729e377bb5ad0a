package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the site backend
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Security pipeline metrics
	RateLimitDeniedTotal  *prometheus.CounterVec
	AuthDeniedTotal       *prometheus.CounterVec
	SecurityEventsTotal   *prometheus.CounterVec
	PipelineFailuresTotal prometheus.Counter

	// Audit ledger metrics
	AuditWritesTotal       prometheus.Counter
	AuditWriteErrorsTotal  prometheus.Counter
	SuspiciousLoginsTotal  *prometheus.CounterVec

	// Business metrics
	LeadsCreatedTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesite_http_requests_total",
				Help: "Total HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesite_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RateLimitDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesite_ratelimit_denied_total",
				Help: "Requests denied by the rate limiter, by route",
			},
			[]string{"route"},
		),
		AuthDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesite_auth_denied_total",
				Help: "Requests denied by authentication or authorization checks",
			},
			[]string{"reason"},
		),
		SecurityEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesite_security_events_total",
				Help: "Security events recorded, by type and severity",
			},
			[]string{"type", "severity"},
		),
		PipelineFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradesite_security_pipeline_failures_total",
				Help: "Unexpected failures inside the security pipeline (fail-closed 500s)",
			},
		),
		AuditWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradesite_audit_writes_total",
				Help: "Audit ledger rows written",
			},
		),
		AuditWriteErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradesite_audit_write_errors_total",
				Help: "Audit ledger writes that failed and were dropped",
			},
		),
		SuspiciousLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesite_suspicious_logins_total",
				Help: "Suspicious login heuristics that fired, by rule",
			},
			[]string{"rule"},
		),
		LeadsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradesite_leads_created_total",
				Help: "Leads captured through the public form",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitDeniedTotal,
		m.AuthDeniedTotal,
		m.SecurityEventsTotal,
		m.PipelineFailuresTotal,
		m.AuditWritesTotal,
		m.AuditWriteErrorsTotal,
		m.SuspiciousLoginsTotal,
		m.LeadsCreatedTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status code for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request counting and timing.
// The path label uses the route pattern, not the raw URL, to bound cardinality.
func (m *Metrics) InstrumentHandler(routePattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, routePattern, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}
