// Package observability bootstraps OpenTelemetry tracing and metrics for
// resilkit processes.
//
// Library packages only use the otel API (otel.Tracer, otel.Meter) and stay
// no-op until a process calls Setup with an OTLP endpoint:
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability)
//	defer shutdown(context.Background())
//
// Spans created by resilience pipelines carry the Attr* keys below.
package observability
