// Package tracing installs the OpenTelemetry tracer provider used by the engine and the HTTP layer.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects where spans go
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// OutputPath is a file for the stdout exporter; empty or "stdout" means os.Stdout
	OutputPath string
}

// ShutdownFunc flushes and stops the provider
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider backed by the stdout exporter.
// When tracing is disabled the global no-op provider stays in place.
func Init(cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	tp, err := NewProvider(cfg.ServiceName, cfg.ServiceVersion, exporter)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// NewProvider builds a tracer provider that exports every span synchronously
func NewProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

// SetStatusFromHTTPCode sets the span's status based on an HTTP response code
func SetStatusFromHTTPCode(span trace.Span, code int) {
	switch {
	case code >= 100 && code < 400:
		span.SetStatus(codes.Ok, "")
	case code >= 400 && code < 500:
		span.SetStatus(codes.Error, "client error")
	case code >= 500:
		span.SetStatus(codes.Error, "server error")
	default:
		span.SetStatus(codes.Unset, "")
	}
}
