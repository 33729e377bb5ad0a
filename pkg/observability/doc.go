// Package observability provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the tradesite backend.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("lead_id", id).Info("Lead created")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics()
//	metrics.SecurityEventsTotal.WithLabelValues("rate_limit_exceeded", "low").Inc()
//
// The metrics registry is private to the Metrics value so tests can create
// independent instances without duplicate-registration panics.
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
package observability
