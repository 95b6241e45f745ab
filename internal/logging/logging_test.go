package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	requestLogger := slog.New(slog.DiscardHandler)
	fallback := slog.New(slog.DiscardHandler)

	t.Run("context logger wins", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithLogger(context.Background(), requestLogger)
		if got := Resolve(ctx, fallback); got != requestLogger {
			t.Fatalf("expected the request logger")
		}
	})

	t.Run("fallback then default", func(t *testing.T) {
		t.Parallel()
		if got := Resolve(context.Background(), fallback); got != fallback {
			t.Fatalf("expected the fallback logger")
		}
		if got := Resolve(context.Background(), nil); got == nil {
			t.Fatalf("expected slog.Default")
		}
	})

	t.Run("nil logger is not attached", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithLogger(context.Background(), nil)
		if FromContext(ctx) != nil {
			t.Fatalf("expected no logger on context")
		}
	})
}

func TestScoped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)).With("request_id", "req-7"))

	Scoped(ctx, nil, "service", "MeetingService", "CreateMeeting", "meeting_id", "m-1").Info("booked")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"request_id": "req-7",
		"service":    "MeetingService",
		"operation":  "CreateMeeting",
		"meeting_id": "m-1",
	} {
		if entry[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, entry[key])
		}
	}
}
