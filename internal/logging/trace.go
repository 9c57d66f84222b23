package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/park285/dong-server/internal/config"
)

// NewLoggerWithOTel: NewLogger 와 같으나 otelEnabled 이면 레코드에 trace_id/span_id 를 붙입니다.
func NewLoggerWithOTel(cfg config.LoggingConfig, otelEnabled bool) (*slog.Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil || !otelEnabled {
		return logger, err
	}
	traced := slog.New(traceHandler{next: logger.Handler()})
	slog.SetDefault(traced)
	return traced, nil
}

type traceHandler struct {
	next slog.Handler
}

func (h traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record = record.Clone()
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{next: h.next.WithGroup(name)}
}
