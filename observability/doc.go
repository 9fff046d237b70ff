// Package observability wires OpenTelemetry tracing and metrics for the
// store and cache layers.
//
// Setup installs OTLP/HTTP exporters when telemetry is enabled; otherwise
// the global no-op providers stay in place and every instrument is free:
//
//	tel, err := observability.Setup(ctx, cfg.Observability, "scalestore", "production", log)
//	defer tel.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter())
//	engine := apicache.NewEngine(store, log, apicache.WithMetrics(metrics))
//
// A nil *Metrics is valid and records nothing.
package observability
