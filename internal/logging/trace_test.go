package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceHandlerAddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(traceHandler{next: slog.NewTextHandler(&buf, nil)})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "calculation_completed", "mode", "structured")
	out := buf.String()
	if !strings.Contains(out, "trace_id=4bf92f3577b34da6a3ce929d0e0e4736") || !strings.Contains(out, "span_id=00f067aa0ba902b7") {
		t.Fatalf("expected trace ids in output: %s", out)
	}

	buf.Reset()
	logger.With("component", "ledger").Info("ledger_reserved")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("unexpected trace id without span: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "component=ledger") {
		t.Fatalf("expected attrs to pass through: %s", buf.String())
	}
}
