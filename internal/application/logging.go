package application

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/manuel-Igtm/meeting-tool/internal/logging"
)

const tracerName = "github.com/manuel-Igtm/meeting-tool/internal/application"

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// startSpan opens a span named service.operation on the global tracer
// provider. It is a no-op until telemetry installs a real provider.
func startSpan(ctx context.Context, serviceName, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, serviceName+"."+operation, trace.WithAttributes(attrs...))
}

// endSpan records err on span, tagged with its ErrorKind, and ends it.
// Caller input errors do not mark the span as failed.
func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := ErrorKind(err)
		span.SetAttributes(attribute.String("error.kind", kind))
		if kind == "unexpected" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// logFailure logs err at a level matching its kind.
func logFailure(logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	if kind == "unexpected" {
		logger.Error(msg, "error", err, "error_kind", kind)
		return
	}
	logger.Warn(msg, "error", err, "error_kind", kind)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
