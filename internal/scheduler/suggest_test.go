package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

func literalScenario() *memorySource {
	src := &memorySource{}
	src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(17, 0))
	src.addBlock("lunch", "alice", span(monday, 12, 0, 13, 0))
	src.addMeeting(Meeting{
		ID:           "standup",
		OrganizerID:  "bob",
		Anchor:       span(monday, 10, 0, 10, 30),
		Participants: []string{"alice"},
		Responses:    map[string]ResponseStatus{"alice": ResponseAccepted},
	})
	return src
}

func TestEngine_SuggestSlots_LiteralScenario(t *testing.T) {
	t.Parallel()

	engine := NewEngine(literalScenario(), DefaultPolicy())
	got, err := engine.SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:  monday,
		Duration:       30 * time.Minute,
		ParticipantIDs: []string{"alice"},
		Count:          3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []interval.Interval{
		span(monday, 9, 0, 9, 30),
		span(monday, 9, 30, 10, 0),
		span(monday, 10, 30, 11, 0),
	}
	assertSlots(t, got.Slots, want)
	if got.Reason != ReasonComplete {
		t.Fatalf("expected reason complete, got %s", got.Reason)
	}
	if got.Slots[0].Start.Location() != time.UTC {
		t.Fatalf("expected UTC output")
	}
}

func TestEngine_SuggestSlots_PassCheckConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := literalScenario()
	src.addWindow("bob", time.Monday, availability.Clock(8, 0), availability.Clock(15, 0))
	src.addBlock("dentist", "bob", span(monday, 14, 0, 14, 45))
	engine := NewEngine(src, DefaultPolicy())

	got, err := engine.SuggestSlots(ctx, SuggestRequest{
		PreferredDate:  monday,
		Duration:       45 * time.Minute,
		ParticipantIDs: []string{"alice", "bob"},
		Count:          20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Slots) == 0 {
		t.Fatalf("expected suggestions")
	}
	for _, slot := range got.Slots {
		report, err := engine.CheckConflicts(ctx, CheckRequest{Candidate: slot, ParticipantIDs: []string{"alice", "bob"}})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if report.HasConflict {
			t.Fatalf("suggested slot %v conflicts: %+v", slot, report.Conflicts)
		}
	}
}

func TestEngine_SuggestSlots_IntersectsParticipants(t *testing.T) {
	t.Parallel()

	src := &memorySource{}
	src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(17, 0))
	src.addWindow("bob", time.Monday, availability.Clock(13, 0), availability.Clock(18, 0))
	src.addMeeting(Meeting{ID: "m1", OrganizerID: "bob", Anchor: span(monday, 14, 0, 15, 0)})

	policy := DefaultPolicy()
	policy.StrictAvailability = true
	got, err := NewEngine(src, policy).SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:    monday,
		Duration:         time.Hour,
		ParticipantIDs:   []string{"alice", "bob"},
		Count:            2,
		SearchWindowDays: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSlots(t, got.Slots, []interval.Interval{span(monday, 13, 0, 14, 0), span(monday, 15, 0, 16, 0)})
}

func TestEngine_SuggestSlots_PreferredTimeAndBufferTieBreak(t *testing.T) {
	t.Parallel()

	src := &memorySource{}
	src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(17, 0))
	noon := availability.Clock(12, 0)

	got, err := NewEngine(src, DefaultPolicy()).SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:    monday,
		Duration:         time.Hour,
		ParticipantIDs:   []string{"alice"},
		Count:            3,
		SearchWindowDays: 1,
		PreferredTime:    &noon,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 13:00 and 11:00 are equidistant from noon; 13:00 sits closer to the
	// middle of the 09:00-17:00 window.
	assertSlots(t, got.Slots, []interval.Interval{
		span(monday, 12, 0, 13, 0),
		span(monday, 13, 0, 14, 0),
		span(monday, 11, 0, 12, 0),
	})
}

func TestEngine_SuggestSlots_EarlierDaysRankFirst(t *testing.T) {
	t.Parallel()

	src := &memorySource{}
	src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(10, 0))
	src.addWindow("alice", time.Tuesday, availability.Clock(9, 0), availability.Clock(17, 0))
	noon := availability.Clock(12, 0)

	got, err := NewEngine(src, DefaultPolicy()).SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:    monday,
		Duration:         time.Hour,
		ParticipantIDs:   []string{"alice"},
		Count:            2,
		SearchWindowDays: 2,
		PreferredTime:    &noon,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Monday 09:00 is three hours from noon and Tuesday 12:00 is on it, yet
	// Monday is exhausted before Tuesday is searched.
	tuesday := monday.AddDays(1)
	assertSlots(t, got.Slots, []interval.Interval{
		span(monday, 9, 0, 10, 0),
		span(tuesday, 12, 0, 13, 0),
	})
}

func TestEngine_SuggestSlots_OverlappingSuggestions(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.OverlappingSuggestions = true
	got, err := NewEngine(literalScenario(), policy).SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:  monday,
		Duration:       30 * time.Minute,
		ParticipantIDs: []string{"alice"},
		Count:          3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSlots(t, got.Slots, []interval.Interval{
		span(monday, 9, 0, 9, 30),
		span(monday, 9, 15, 9, 45),
		span(monday, 9, 30, 10, 0),
	})
}

func TestEngine_SuggestSlots_ExhaustionReasons(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("strict availability without windows", func(t *testing.T) {
		t.Parallel()

		policy := DefaultPolicy()
		policy.StrictAvailability = true
		got, err := NewEngine(&memorySource{}, policy).SuggestSlots(ctx, SuggestRequest{PreferredDate: monday, Duration: time.Hour, ParticipantIDs: []string{"alice"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Slots) != 0 || got.Reason != ReasonNoCommonFreeTime {
			t.Fatalf("expected no slots with no_common_free_time, got %+v", got)
		}
	})

	t.Run("iteration ceiling", func(t *testing.T) {
		t.Parallel()

		policy := DefaultPolicy()
		policy.MaxCandidatesPerDay = 2
		got, err := NewEngine(&memorySource{}, policy).SuggestSlots(ctx, SuggestRequest{
			PreferredDate:    monday,
			Duration:         30 * time.Minute,
			ParticipantIDs:   []string{"alice"},
			Count:            5,
			SearchWindowDays: 1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Reason != ReasonIterationCeiling {
			t.Fatalf("expected iteration_ceiling, got %s", got.Reason)
		}
		assertSlots(t, got.Slots, []interval.Interval{{Start: at(monday, 0, 0), End: at(monday, 0, 30)}})
	})

	t.Run("window exhausted with partial results", func(t *testing.T) {
		t.Parallel()

		src := &memorySource{}
		src.addWindow("alice", time.Monday, availability.Clock(9, 0), availability.Clock(10, 0))
		policy := DefaultPolicy()
		policy.StrictAvailability = true
		got, err := NewEngine(src, policy).SuggestSlots(ctx, SuggestRequest{
			PreferredDate:    monday,
			Duration:         30 * time.Minute,
			ParticipantIDs:   []string{"alice"},
			Count:            5,
			SearchWindowDays: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Reason != ReasonWindowExhausted || len(got.Slots) != 2 {
			t.Fatalf("expected 2 slots with window_exhausted, got %+v", got)
		}
	})
}

func TestEngine_SuggestSlots_ClampsAndValidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(&memorySource{}, DefaultPolicy())

	got, err := engine.SuggestSlots(ctx, SuggestRequest{PreferredDate: monday, Duration: 15 * time.Minute, ParticipantIDs: []string{"alice"}, Count: 500, SearchWindowDays: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Slots) != engine.Policy().MaxSuggestions {
		t.Fatalf("expected count clamped to %d, got %d", engine.Policy().MaxSuggestions, len(got.Slots))
	}

	got, err = engine.SuggestSlots(ctx, SuggestRequest{PreferredDate: monday, Duration: 15 * time.Minute, ParticipantIDs: []string{"alice"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Slots) != engine.Policy().DefaultSuggestions {
		t.Fatalf("expected default count %d, got %d", engine.Policy().DefaultSuggestions, len(got.Slots))
	}

	cases := []struct {
		name string
		req  SuggestRequest
		want error
	}{
		{name: "zero duration", req: SuggestRequest{PreferredDate: monday, ParticipantIDs: []string{"alice"}}, want: ErrInvalidInterval},
		{name: "negative count", req: SuggestRequest{PreferredDate: monday, Duration: time.Hour, ParticipantIDs: []string{"alice"}, Count: -1}, want: ErrInvalidRequest},
		{name: "negative window", req: SuggestRequest{PreferredDate: monday, Duration: time.Hour, ParticipantIDs: []string{"alice"}, SearchWindowDays: -3}, want: ErrInvalidRequest},
		{name: "no participants", req: SuggestRequest{PreferredDate: monday, Duration: time.Hour}, want: ErrInvalidRequest},
		{name: "no date", req: SuggestRequest{Duration: time.Hour, ParticipantIDs: []string{"alice"}}, want: ErrInvalidRequest},
	}
	for _, tc := range cases {
		if _, err := engine.SuggestSlots(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEngine_SuggestSlots_SkipWeekends(t *testing.T) {
	t.Parallel()

	saturday := monday.AddDays(5)
	policy := DefaultPolicy()
	policy.SkipWeekends = true

	got, err := NewEngine(&memorySource{}, policy).SuggestSlots(context.Background(), SuggestRequest{
		PreferredDate:  saturday,
		Duration:       time.Hour,
		ParticipantIDs: []string{"alice"},
		Count:          1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nextMonday := monday.AddDays(7)
	assertSlots(t, got.Slots, []interval.Interval{{Start: at(nextMonday, 0, 0), End: at(nextMonday, 1, 0)}})
}

func TestEngine_NextAvailable(t *testing.T) {
	t.Parallel()

	engine := NewEngine(literalScenario(), DefaultPolicy())
	slot, ok, err := engine.NextAvailable(context.Background(), at(monday, 10, 10), 30*time.Minute, []string{"alice"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a slot")
	}
	if !slot.Equal(span(monday, 10, 30, 11, 0)) {
		t.Fatalf("expected 10:30-11:00, got %v", slot)
	}

	_, ok, err = engine.NextAvailable(context.Background(), at(monday, 10, 10), 30*time.Hour, []string{"alice"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no slot for a duration longer than a day")
	}
}

func TestEngine_ResolveAvailability(t *testing.T) {
	t.Parallel()

	engine := NewEngine(literalScenario(), DefaultPolicy())
	got, err := engine.ResolveAvailability(context.Background(), "alice", monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSlots(t, got, []interval.Interval{span(monday, 9, 0, 12, 0), span(monday, 13, 0, 17, 0)})
}

func TestEngine_Agenda(t *testing.T) {
	t.Parallel()

	engine := NewEngine(literalScenario(), DefaultPolicy())
	entries, truncated, err := engine.Agenda(context.Background(), "alice", monday.Span(eat))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Fatalf("did not expect truncation")
	}
	if len(entries) != 2 || entries[0].SourceID != "standup" || entries[1].SourceID != "lunch" {
		t.Fatalf("unexpected agenda %+v", entries)
	}
	if entries[1].Reason != availability.ReasonBusy {
		t.Fatalf("expected block reason, got %q", entries[1].Reason)
	}
}

func assertSlots(t *testing.T, got, want []interval.Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %v, got %v", i, want[i].UTC(), got[i])
		}
	}
}
