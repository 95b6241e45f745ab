package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/manuel-Igtm/meeting-tool/internal/logging"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: ErrNotFound, want: "not_found"},
		{name: "mapped not found", err: mapRepoError(persistence.ErrNotFound), want: "not_found"},
		{name: "duplicate", err: mapRepoError(fmt.Errorf("insert: %w", persistence.ErrDuplicate)), want: "already_exists"},
		{name: "conflict", err: &scheduler.ConflictError{}, want: "conflict"},
		{name: "unknown participant", err: &scheduler.UnknownParticipantError{IDs: []string{"zed"}}, want: "unknown_participant"},
		{name: "validation", err: fieldError("title", "is required"), want: "validation"},
		{name: "engine interval", err: mapEngineError(scheduler.ErrInvalidInterval), want: "validation"},
		{name: "other", err: errors.New("boom"), want: "unexpected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var captured []string
	handler := &recordingHandler{records: &captured}
	ctxLogger := slog.New(handler)
	base := slog.New(slog.DiscardHandler)

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "MeetingService", "CreateMeeting").Info("hello")
	if len(captured) != 1 || captured[0] != "hello" {
		t.Fatalf("expected context logger to receive the record, got %v", captured)
	}
}

type recordingHandler struct {
	records *[]string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }
