// Package observability wires OpenTelemetry tracing for the CLI.
package observability

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/logger"
)

const ServiceName = "secexpert"

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// InitTracing installs a global tracer provider that writes spans as JSON.
// When tracing is disabled it installs nothing and returns a no-op shutdown.
func InitTracing(ctx context.Context, cfg config.TracingConfig, log *logger.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if log == nil {
		log = logger.Nop()
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
		closeFn = f.Close
	}

	tp, err := NewTracerProvider(ctx, w, cfg.SampleRatio)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	otel.SetTracerProvider(tp)
	log.Info("tracing initialized", "output", cfg.Output, "sample_ratio", cfg.SampleRatio)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

// NewTracerProvider builds a synchronous stdout-exporter provider writing to w.
func NewTracerProvider(ctx context.Context, w io.Writer, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", ServiceName)))
	if err != nil {
		return nil, err
	}
	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(res),
	), nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// NoopTracer discards spans.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(ServiceName)
}
