// Package logging wraps log/slog with trace/span correlation, matching the
// teacher's engine/telemetry/logging verbatim in shape (it is small enough
// that the only real change is which tracing package supplies the ids).
package logging

import (
	"context"
	"log/slog"

	"aegis/engine/telemetry/tracing"
)

// Logger is a minimal interface wrapper allowing correlation injection.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	WarnCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
}

type correlatedLogger struct{ base *slog.Logger }

// New returns a correlated Logger wrapper. A nil base falls back to
// slog.Default().
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &correlatedLogger{base: base}
}

func (l *correlatedLogger) withTrace(ctx context.Context, attrs []any) []any {
	traceID, spanID := tracing.ExtractIDs(ctx)
	if traceID != "" || spanID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID), slog.String("span_id", spanID))
	}
	return attrs
}

func (l *correlatedLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, l.withTrace(ctx, attrs)...)
}

func (l *correlatedLogger) WarnCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.WarnContext(ctx, msg, l.withTrace(ctx, attrs)...)
}

func (l *correlatedLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, l.withTrace(ctx, attrs)...)
}
