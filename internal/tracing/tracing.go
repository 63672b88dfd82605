// Package tracing exports OpenTelemetry spans over OTLP/gRPC.
package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the collector and the sampling rate.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the collector host:port. Empty disables export.
	Endpoint string
	Insecure bool
	// SampleRatio applies to root spans; children follow their parent.
	SampleRatio float64
}

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// ErrInvalidSampleRatio is returned for ratios outside [0, 1].
var ErrInvalidSampleRatio = errors.New("sample ratio must be between 0 and 1")

// Setup installs the global tracer provider and propagator.
// Without an endpoint the global no-op provider stays in place.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, cfg.SampleRatio)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := NewProvider(res, cfg.SampleRatio, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider with parent-based ratio sampling.
func NewProvider(res *resource.Resource, ratio float64, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	return res, nil
}
