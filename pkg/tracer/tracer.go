package tracer

import (
	"context"
	"sync"

	"github.com/qp-cloud/edge-auth-gateway/pkg/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	//nolint:gochecknoglobals // Application-wide tracer
	defaultTracer trace.Tracer
	//nolint:gochecknoglobals // Guards one-time initialization
	initOnce sync.Once
	//nolint:gochecknoglobals // Initialization error kept for repeat calls
	errInit error
)

func InitTracer(serviceName string, cfg otel.Config) error {
	initOnce.Do(func() {
		cfg.ServiceName = serviceName
		t, err := otel.InitTracer(cfg)
		if err != nil {
			errInit = err
			return
		}
		defaultTracer = t
	})

	return errInit
}

// Start opens a span on the configured tracer, falling back to a noop tracer
// before initialization so call sites never nil-check.
func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if defaultTracer == nil {
		return noop.NewTracerProvider().Tracer("noop").Start(ctx, spanName, opts...)
	}
	return defaultTracer.Start(ctx, spanName, opts...)
}
