package otel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	//nolint:gochecknoglobals // Provider kept for shutdown
	tracerProvider *sdktrace.TracerProvider
	//nolint:gochecknoglobals // Guards provider access
	tracerProviderMu sync.Mutex
)

// InitTracer installs a global tracer provider. With tracing disabled or no
// endpoint configured it installs a noop provider so callers never branch.
func InitTracer(cfg Config) (trace.Tracer, error) {
	tracerProviderMu.Lock()
	defer tracerProviderMu.Unlock()

	if !cfg.Enabled || cfg.EndpointURL == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp.Tracer(cfg.ServiceName), nil
	}

	ctx := context.Background()

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(cfg.toResourceAttributes()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRatio <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SampleRatio >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider = tp
	return tp.Tracer(cfg.ServiceName), nil
}

// newExporter picks the OTLP transport from the endpoint scheme: grpc:// for
// gRPC, anything else goes over HTTP.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if endpoint, ok := strings.CutPrefix(cfg.EndpointURL, "grpc://"); ok {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		return exporter, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.EndpointURL)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}
	return exporter, nil
}

func Shutdown(ctx context.Context) error {
	tracerProviderMu.Lock()
	defer tracerProviderMu.Unlock()

	if tracerProvider == nil {
		return nil
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	tracerProvider = nil
	return nil
}
