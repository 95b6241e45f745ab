package http

import (
	"context"
	"log/slog"

	"github.com/manuel-Igtm/meeting-tool/internal/logging"
)

type contextKey string

const (
	meetingIDContextKey     contextKey = "meeting_id"
	participantIDContextKey contextKey = "participant_id"
	resourceIDContextKey    contextKey = "resource_id"
	requestIDContextKey     contextKey = "request_id"
)

// ContextWithMeetingID injects the meeting identifier resolved from the request path.
func ContextWithMeetingID(ctx context.Context, meetingID string) context.Context {
	return context.WithValue(ctx, meetingIDContextKey, meetingID)
}

// MeetingIDFromContext extracts a meeting identifier previously associated with the context.
func MeetingIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(meetingIDContextKey).(string)
	return id, ok
}

// ContextWithParticipantID injects the participant identifier resolved from the request path.
func ContextWithParticipantID(ctx context.Context, participantID string) context.Context {
	return context.WithValue(ctx, participantIDContextKey, participantID)
}

// ParticipantIDFromContext extracts a participant identifier previously associated with the context.
func ParticipantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(participantIDContextKey).(string)
	return id, ok
}

// ContextWithResourceID injects the identifier of a window or blocked time entry.
func ContextWithResourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resourceIDContextKey, id)
}

// ResourceIDFromContext extracts the window or blocked time identifier.
func ResourceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(resourceIDContextKey).(string)
	return id, ok
}

// RequestIDFromContext returns the identifier RequestLogger assigned to the request.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
