package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"sales-dashboard/internal/config"
)

// TracerName is the instrumentation scope used for spans started by the
// HTTP layer.
const TracerName = "sales-dashboard"

// Tracing owns the process tracer provider.
type Tracing struct {
	Provider trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes buffered spans and stops the exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// InitTracing installs the global tracer provider and propagator. With
// tracing disabled a no-op provider is installed so instrumented code runs
// unchanged.
func InitTracing(cfg config.TelemetryConfig, logger *slog.Logger) (*Tracing, error) {
	return initTracingTo(os.Stdout, cfg, logger)
}

func initTracingTo(w io.Writer, cfg config.TelemetryConfig, logger *slog.Logger) (*Tracing, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.TracingEnabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		logger.Info("tracing disabled")
		return &Tracing{Provider: tp}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		"exporter", "stdout",
		"service", cfg.ServiceName,
		"sample_ratio", cfg.SampleRatio,
	)
	return &Tracing{Provider: tp, shutdown: tp.Shutdown}, nil
}
