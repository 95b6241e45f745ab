package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

func TestEngine_CheckConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("declined meeting only frees the decliner", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{
			ID:           "m1",
			OrganizerID:  "carol",
			Anchor:       span(monday, 10, 0, 11, 0),
			Participants: []string{"alice", "bob"},
			Responses:    map[string]ResponseStatus{"alice": ResponseDeclined, "bob": ResponseAccepted},
		})
		engine := NewEngine(src, DefaultPolicy())

		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("expected no conflict for the decliner, got %+v", report.Conflicts)
		}

		report, err = engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"alice", "bob"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.HasConflict || len(report.Conflicts) != 1 || report.Conflicts[0].ParticipantID != "bob" {
			t.Fatalf("expected a single conflict for bob, got %+v", report.Conflicts)
		}
	})

	t.Run("organizer is occupied by own meeting", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "carol", Anchor: span(monday, 10, 0, 11, 0), Participants: []string{"bob"}})
		engine := NewEngine(src, DefaultPolicy())

		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 30, 11, 30), ParticipantIDs: []string{"carol"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.HasConflict {
			t.Fatalf("expected the organizer to be occupied")
		}
	})

	t.Run("ignore meeting excludes self overlap", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "alice", Anchor: span(monday, 10, 0, 11, 0)})
		engine := NewEngine(src, DefaultPolicy())

		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 30, 11, 30), ParticipantIDs: []string{"alice"}, IgnoreMeetingID: "m1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("expected the edited meeting to be ignored, got %+v", report.Conflicts)
		}
	})

	t.Run("touching boundaries do not conflict", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "alice", Anchor: span(monday, 10, 0, 11, 0)})
		src.addBlock("b1", "alice", span(monday, 12, 0, 13, 0))
		engine := NewEngine(src, DefaultPolicy())

		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 11, 0, 12, 0), ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("expected no conflict, got %+v", report.Conflicts)
		}
	})

	t.Run("reports every conflict in order", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "bob", Anchor: span(monday, 10, 0, 10, 30)})
		src.addMeeting(Meeting{ID: "m2", OrganizerID: "alice", Anchor: span(monday, 11, 0, 11, 30), Participants: []string{"bob"}})
		src.addBlock("b1", "alice", span(monday, 10, 30, 11, 0))
		engine := NewEngine(src, DefaultPolicy())

		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 12, 0), ParticipantIDs: []string{"bob", "alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []struct {
			participant string
			kind        ConflictKind
			source      string
		}{
			{"bob", ConflictKindMeeting, "m1"},
			{"alice", ConflictKindBlockedTime, "b1"},
			{"alice", ConflictKindMeeting, "m2"},
			{"bob", ConflictKindMeeting, "m2"},
		}
		if len(report.Conflicts) != len(want) {
			t.Fatalf("expected %d conflicts, got %+v", len(want), report.Conflicts)
		}
		for i, w := range want {
			c := report.Conflicts[i]
			if c.ParticipantID != w.participant || c.Kind != w.kind || c.SourceID != w.source {
				t.Fatalf("conflict %d: expected %+v, got %+v", i, w, c)
			}
			if c.Overlap.Start.Location() != time.UTC {
				t.Fatalf("expected UTC output, got %s", c.Overlap.Start.Location())
			}
		}
	})

	t.Run("recurring occurrences and exclusions", func(t *testing.T) {
		t.Parallel()

		anchorDay := monday.AddDays(-7)
		series := Meeting{
			ID:          "weekly",
			OrganizerID: "alice",
			Anchor:      span(anchorDay, 10, 0, 11, 0),
			Rule:        recurrence.Rule{Frequency: recurrence.FrequencyWeekly},
		}
		src := &memorySource{}
		src.addMeeting(series)
		engine := NewEngine(src, DefaultPolicy())

		later := monday.AddDays(7)
		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(later, 10, 15, 10, 45), ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(report.Conflicts) != 1 || report.Conflicts[0].OccurrenceIndex != 2 {
			t.Fatalf("expected occurrence 2 to conflict, got %+v", report.Conflicts)
		}

		excluded := series
		excluded.ExcludedIndices = []int{2}
		src2 := &memorySource{}
		src2.addMeeting(excluded)
		report, err = NewEngine(src2, DefaultPolicy()).CheckConflicts(ctx, CheckRequest{Candidate: span(later, 10, 15, 10, 45), ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("expected cancelled occurrence to be skipped, got %+v", report.Conflicts)
		}
	})

	t.Run("cancelled meetings never conflict", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "alice", Anchor: span(monday, 10, 0, 11, 0), Status: StatusCancelled})
		report, err := NewEngine(src, DefaultPolicy()).CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("expected no conflict, got %+v", report.Conflicts)
		}
	})

	t.Run("input is normalized to the reference zone", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addMeeting(Meeting{ID: "m1", OrganizerID: "alice", Anchor: span(monday, 10, 0, 11, 0)})
		candidate := span(monday, 10, 30, 11, 0).UTC()
		report, err := NewEngine(src, DefaultPolicy()).CheckConflicts(ctx, CheckRequest{Candidate: candidate, ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.HasConflict || !report.Conflicts[0].Overlap.Equal(candidate) {
			t.Fatalf("expected overlap %v, got %+v", candidate, report.Conflicts)
		}
	})
}

func TestEngine_CheckConflicts_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&memorySource{}, DefaultPolicy())
	ctx := context.Background()

	_, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 10, 0), ParticipantIDs: []string{"alice"}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	_, err = engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 11, 0, 10, 0), ParticipantIDs: []string{"alice"}})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for reversed bounds, got %v", err)
	}
	_, err = engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{" "}})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Field != "participant_ids" || !IsValidation(err) {
		t.Fatalf("expected participant_ids RequestError, got %v", err)
	}
}

func TestEngine_StrictParticipants(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	policy := DefaultPolicy()
	policy.StrictParticipants = true

	src := &memorySource{}
	src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(17, 0))

	t.Run("data presence", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(src, policy)
		_, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"alice", "ghost"}})
		var unknown *UnknownParticipantError
		if !errors.As(err, &unknown) || !errors.Is(err, ErrUnknownParticipant) {
			t.Fatalf("expected UnknownParticipantError, got %v", err)
		}
		if len(unknown.IDs) != 1 || unknown.IDs[0] != "ghost" {
			t.Fatalf("expected ghost to be reported, got %v", unknown.IDs)
		}

		if _, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"alice"}}); err != nil {
			t.Fatalf("unexpected error for known participant: %v", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(directorySource{memorySource: &memorySource{}, known: map[string]bool{"newcomer": true}}, policy)
		if _, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"newcomer"}}); err != nil {
			t.Fatalf("expected directory to vouch for participant, got %v", err)
		}
		if _, err := engine.ResolveAvailability(ctx, "ghost", monday); !errors.Is(err, ErrUnknownParticipant) {
			t.Fatalf("expected ErrUnknownParticipant, got %v", err)
		}
	})

	t.Run("permissive ignores unknown participants", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(src, DefaultPolicy())
		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: span(monday, 10, 0, 11, 0), ParticipantIDs: []string{"ghost"}})
		if err != nil || report.HasConflict {
			t.Fatalf("expected ghost to be fully available, got %+v, %v", report, err)
		}
	})
}

func TestDetector_ZeroLengthCandidateNeverConflicts(t *testing.T) {
	t.Parallel()

	detector := NewDetector(recurrence.NewEngine(eat, 0))
	calendars := []Calendar{{
		ParticipantID: "alice",
		Meetings:      []Meeting{{ID: "m1", OrganizerID: "alice", Anchor: span(monday, 10, 0, 11, 0)}},
	}}
	instant := at(monday, 10, 30)
	report, err := detector.Check(interval.Interval{Start: instant, End: instant}, calendars, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.HasConflict {
		t.Fatalf("expected zero-length candidate not to conflict")
	}
}
