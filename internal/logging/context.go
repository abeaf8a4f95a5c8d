package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTrace attaches a fresh trace ID to the context and returns a logger
// carrying it. Every request and every pipeline run gets its own trace.
func WithTrace(ctx context.Context, logger zerolog.Logger) (context.Context, zerolog.Logger) {
	traceID := uuid.New().String()
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return ctx, logger.With().Str("trace_id", traceID).Logger()
}

// TraceID returns the trace ID stored in the context, or "" when absent.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
