package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

func TestResponderHandleServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "invalid interval", err: fmt.Errorf("check: %w", scheduler.ErrInvalidInterval), status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "invalid request", err: &scheduler.RequestError{Field: "duration", Message: "must be positive"}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "unknown participant", err: &scheduler.UnknownParticipantError{IDs: []string{"zed"}}, status: http.StatusNotFound, code: "UNKNOWN_PARTICIPANT"},
		{name: "not found", err: application.ErrNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "conflict", err: &scheduler.ConflictError{}, status: http.StatusConflict, code: "SLOT_CONFLICT"},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	r := newResponder(slog.New(slog.DiscardHandler))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			r.handleServiceError(context.Background(), rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if body := decodeBody[errorResponse](t, rec); body.ErrorCode != tc.code {
				t.Fatalf("expected error code %s, got %+v", tc.code, body)
			}
		})
	}
}
