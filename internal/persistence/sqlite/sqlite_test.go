package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	storage, err := Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	if err := storage.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStorage_MapsConstraintErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	now := time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)

	meeting := persistence.Meeting{
		ID:          "m1",
		OrganizerID: "alice",
		Start:       now,
		End:         now.Add(time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := storage.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting failed: %v", err)
	}
	if err := storage.CreateMeeting(ctx, meeting); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	inverted := meeting
	inverted.ID = "m2"
	inverted.End = inverted.Start.Add(-time.Minute)
	if err := storage.CreateMeeting(ctx, inverted); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	window := persistence.AvailabilityWindow{
		ID:            "w1",
		ParticipantID: "alice",
		Weekday:       9,
		StartMinute:   60,
		EndMinute:     120,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := storage.CreateWindow(ctx, window); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for weekday 9, got %v", err)
	}
}

func TestStorage_DeleteMeetingCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	now := time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)

	meeting := persistence.Meeting{
		ID:              "m1",
		OrganizerID:     "alice",
		Start:           now,
		End:             now.Add(time.Hour),
		Frequency:       "daily",
		Participants:    []string{"bob"},
		ExcludedIndices: []int{2},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := storage.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting failed: %v", err)
	}
	if err := storage.DeleteMeeting(ctx, "m1"); err != nil {
		t.Fatalf("DeleteMeeting failed: %v", err)
	}

	var orphans int
	row := storage.pool.DB().QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM meeting_participants) + (SELECT COUNT(*) FROM meeting_exclusions)`)
	if err := row.Scan(&orphans); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected child rows to cascade, %d remain", orphans)
	}
}

func TestRetryHelper(t *testing.T) {
	t.Parallel()

	fast := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries busy errors", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		if err != nil || attempts != 3 {
			t.Fatalf("expected success on third attempt, got err=%v attempts=%d", err, attempts)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			return errors.New("database is locked")
		})
		if !errors.Is(err, ErrDatabaseBusy) {
			t.Fatalf("expected ErrDatabaseBusy, got %v", err)
		}
	})

	t.Run("does not retry constraint violations", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := NewRetryHelper(fast).WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("constraint failed: UNIQUE constraint failed: meetings.id")
		})
		if !errors.Is(err, persistence.ErrDuplicate) || attempts != 1 {
			t.Fatalf("expected one ErrDuplicate attempt, got err=%v attempts=%d", err, attempts)
		}
	})
}
