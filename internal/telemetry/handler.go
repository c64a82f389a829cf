package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// TraceHandler decorates a slog.Handler with the IDs of the active
// span, so any log line written during a request can be joined to its
// trace. Both binaries log through it.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(inner slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: inner}
}

func (h *TraceHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		// Not inside a span (startup, shutdown, queue consumers).
		return h.Handler.Handle(ctx, record)
	}

	record.AddAttrs(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
	return h.Handler.Handle(ctx, record)
}
