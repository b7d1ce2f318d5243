// Package telemetry configures the OpenTelemetry providers shared by the
// domain services.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider creates a TracerProvider carrying the service identity.
// Exporters are attached by the embedding process through the returned
// provider; without one, spans are recorded and dropped, which keeps the
// domain code unconditional about tracing.
func NewTracerProvider(service string, logger *slog.Logger, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
		),
	)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create resource, using default", "error", err)
		}
		res = resource.Default()
	}

	opts = append(opts, sdktrace.WithResource(res))
	return sdktrace.NewTracerProvider(opts...)
}

// Tracer returns a tracer for the given instrumentation scope from the
// global provider.
func Tracer(scope string) trace.Tracer {
	return otel.Tracer(scope)
}

// Meter returns a meter for the given instrumentation scope from the
// global provider.
func Meter(scope string) metric.Meter {
	return otel.Meter(scope)
}
