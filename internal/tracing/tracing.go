// Package tracing configures OpenTelemetry. The engine and dispatcher
// create react.session, react.generate and tool.invoke spans against the
// global tracer provider, which Setup installs.
package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "quill"

// ErrMissingEndpoint is returned when tracing is enabled without an
// exporter endpoint.
var ErrMissingEndpoint = errors.New("tracing: endpoint is required when enabled")

// Config controls span export.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP/HTTP collector, host:port.
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate checks an enabled config.
func (c Config) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting over OTLP/HTTP. When
// tracing is disabled it installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	tp := NewProvider(cfg, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider carrying the service resource and
// the configured sampler. Span processors are passed as options.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}
