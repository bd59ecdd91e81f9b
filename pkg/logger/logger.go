package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

var (
	//nolint:gochecknoglobals // Application-wide logger
	defaultLogger *slog.Logger
	//nolint:gochecknoglobals // Guards one-time initialization
	initOnce sync.Once
)

// otelHandler enriches records with the active span's trace context.
type otelHandler struct {
	slog.Handler
}

func (h *otelHandler) Handle(ctx context.Context, r slog.Record) error {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

// Init configures the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(level, format string) {
	initOnce.Do(func() {
		opts := &slog.HandlerOptions{Level: parseLevel(level)}

		var handler slog.Handler
		if format == "json" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		defaultLogger = slog.New(&otelHandler{Handler: handler})
	})
}

func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if defaultLogger == nil {
		return
	}
	//nolint:sloglint // Global logger is the package API
	defaultLogger.LogAttrs(ctx, level, msg, attrs...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
