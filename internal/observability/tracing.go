package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/barabonda/linkbrain/internal/config"
	"github.com/barabonda/linkbrain/internal/types"
	"github.com/barabonda/linkbrain/pkg/version"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "linkbrain"
)

// Tracing error codes.
const (
	ErrCodeTracingInit     types.ErrorCode = "TRACING_INIT_FAILED"
	ErrCodeTracingShutdown types.ErrorCode = "TRACING_SHUTDOWN_FAILED"
)

// TracingOption is a functional option for configuring tracing initialization.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
	writer       io.Writer
	serviceName  string
}

// WithSampler sets a custom sampler for the tracer provider.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithResource sets a custom resource for the tracer provider.
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) {
		o.resource = res
	}
}

// WithBatchTimeout sets the maximum time between batch exports.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// WithExporterWriter sets where the stdout exporter writes.
// Default: os.Stderr, so that stdout stays free for the MCP stdio transport.
func WithExporterWriter(w io.Writer) TracingOption {
	return func(o *tracingOptions) {
		o.writer = w
	}
}

// WithServiceName sets the service.name resource attribute.
// Default: "linkbrain"
func WithServiceName(name string) TracingOption {
	return func(o *tracingOptions) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// InitTracing creates a tracer provider for cfg and installs it globally.
//
// When cfg.Enabled is false the returned provider has no exporter and the
// global provider is left untouched, so tracers stay no-ops.
func InitTracing(ctx context.Context, cfg config.TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}

	options := &tracingOptions{
		batchTimeout: defaultBatchTimeout,
		writer:       os.Stderr,
		serviceName:  defaultServiceName,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		options.sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	if options.resource == nil {
		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(options.serviceName),
				semconv.ServiceVersion(version.Version),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, types.WrapError(ErrCodeTracingInit, "failed to create resource", err)
		}
		options.resource = res
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(options.writer))
		if err != nil {
			return nil, types.WrapError(ErrCodeTracingInit, "failed to create stdout exporter", err)
		}

	case "otlp":
		otlpOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, otlpOpts...)
		if err != nil {
			return nil, types.WrapRetryableError(ErrCodeTracingInit,
				fmt.Sprintf("failed to connect to OTLP endpoint %s", cfg.Endpoint), err)
		}

	default:
		return nil, types.NewError(ErrCodeTracingInit, fmt.Sprintf("unsupported tracing exporter: %s", cfg.Exporter))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(options.batchTimeout),
		),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing flushes pending spans and stops the provider. The context
// deadline bounds how long pending exports may take.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return types.WrapError(ErrCodeTracingShutdown, "failed to shutdown tracer provider", err)
	}
	return nil
}
