// Package observability sets up structured logging and distributed tracing.
//
// Logging is plain log/slog. NewLogger builds a logger whose handler adds
// trace_id and span_id from the active OpenTelemetry span and redacts
// sensitive attributes:
//
//	logger, err := observability.NewLogger(cfg.Logging, os.Stderr)
//	logger.InfoContext(ctx, "connected", "uri", uri, "password", pw) // password=[REDACTED]
//
// Tracing installs a global TracerProvider. Components obtain tracers with
// otel.Tracer and never import this package:
//
//	tp, err := observability.InitTracing(ctx, cfg.Tracing)
//	defer observability.ShutdownTracing(shutdownCtx, tp)
package observability
