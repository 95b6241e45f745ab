package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/logging"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidMeetingID    = errors.New("meeting id is required")
	errInvalidParticipant  = errors.New("participant id is required")
	errInvalidResourceID   = errors.New("resource id is required")
	errEmptyCalendarUpload = errors.New("calendar body is empty")
)

const maxRequestBody = 1 << 20

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	var unknown *scheduler.UnknownParticipantError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, scheduler.ErrInvalidInterval), errors.Is(err, scheduler.ErrInvalidRequest):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   err.Error(),
		})
	case errors.As(err, &unknown):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "UNKNOWN_PARTICIPANT",
			Message:   "unknown participants: " + strings.Join(unknown.IDs, ", "),
		})
	case errors.Is(err, application.ErrUnknownParticipant):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "UNKNOWN_PARTICIPANT", Message: err.Error()})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "the resource already exists"})
	case errors.Is(err, application.ErrConflict):
		payload := conflictResponse{
			ErrorCode: "SLOT_CONFLICT",
			Message:   "the requested time conflicts with existing commitments",
		}
		if report, ok := application.ConflictReportOf(err); ok {
			dto := toConflictReportDTO(report)
			payload.Report = &dto
		}
		r.writeJSON(ctx, w, http.StatusConflict, payload)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "INTERNAL",
			Message:   statusMessage(http.StatusInternalServerError),
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.Resolve(ctx, r.logger)
}

func (r responder) decode(ctx context.Context, w http.ResponseWriter, req *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		r.loggerFor(ctx).DebugContext(ctx, "request body rejected", "error", err)
		r.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	case http.StatusServiceUnavailable:
		return "the service is not ready"
	default:
		return "an internal error occurred"
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type conflictResponse struct {
	ErrorCode string             `json:"error_code"`
	Message   string             `json:"message"`
	Report    *conflictReportDTO `json:"report,omitempty"`
}
