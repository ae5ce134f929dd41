package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/singalong"

// Span attribute keys shared by the session and API layers.
const (
	AttrSessionID = attribute.Key("singalong.session.id")
	AttrTakeID    = attribute.Key("singalong.take.id")
)

// Tracer returns the server tracer from the global [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Fail records err on span and marks the span as failed.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// CorrelationID returns the trace id of the span in ctx, or "" without one.
// It doubles as the X-Correlation-ID response header.
func CorrelationID(ctx context.Context) string {
	traceID, _, _ := spanIDs(ctx)
	return traceID
}

// Logger returns the default logger with trace_id and span_id from ctx. It is
// the default logger unchanged when ctx carries no span.
func Logger(ctx context.Context) *slog.Logger {
	traceID, spanID, ok := spanIDs(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With(slog.String("trace_id", traceID), slog.String("span_id", spanID))
}

// SessionLogger is [Logger] with a session_id attribute.
func SessionLogger(ctx context.Context, sessionID string) *slog.Logger {
	return Logger(ctx).With(slog.String("session_id", sessionID))
}

func spanIDs(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
