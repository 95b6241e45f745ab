package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/testfixtures"
)

func TestParticipantRepository(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()

		alice := testfixtures.NewParticipantFixture(
			testfixtures.WithParticipantID("alice"),
			testfixtures.WithParticipantDisplayName("Alice"),
		).Persistence()
		bob := testfixtures.NewParticipantFixture(testfixtures.WithParticipantID("bob")).Persistence()

		for _, p := range []persistence.Participant{bob, alice} {
			if err := store.UpsertParticipant(ctx, p); err != nil {
				t.Fatalf("UpsertParticipant failed: %v", err)
			}
		}

		renamed := alice
		renamed.DisplayName = "Alice A."
		renamed.CreatedAt = alice.CreatedAt.Add(time.Hour)
		renamed.UpdatedAt = alice.UpdatedAt.Add(time.Hour)
		if err := store.UpsertParticipant(ctx, renamed); err != nil {
			t.Fatalf("UpsertParticipant (update) failed: %v", err)
		}

		got, err := store.GetParticipant(ctx, "alice")
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if got.DisplayName != "Alice A." || !got.CreatedAt.Equal(alice.CreatedAt) {
			t.Fatalf("unexpected participant after upsert: %#v", got)
		}

		list, err := store.ListParticipants(ctx)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(list) != 2 || list[0].ID != "alice" || list[1].ID != "bob" {
			t.Fatalf("expected participants ordered by ID, got %#v", list)
		}

		missing, err := store.MissingParticipantIDs(ctx, []string{"zoe", "alice", "yan", "zoe"})
		if err != nil {
			t.Fatalf("MissingParticipantIDs failed: %v", err)
		}
		if !slices.Equal(missing, []string{"zoe", "yan"}) {
			t.Fatalf("unexpected missing IDs: %v", missing)
		}

		if err := store.DeleteParticipant(ctx, "bob"); err != nil {
			t.Fatalf("DeleteParticipant failed: %v", err)
		}
		if _, err := store.GetParticipant(ctx, "bob"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteParticipant(ctx, "bob"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestMeetingRepository(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		until := testfixtures.At(28, 0, 0)

		weekly := testfixtures.NewMeetingFixture(
			testfixtures.WithMeetingID("weekly"),
			testfixtures.WithMeetingOrganizer("alice"),
			testfixtures.WithMeetingDescription("team sync"),
			testfixtures.WithMeetingStartEnd(testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)),
			testfixtures.WithMeetingParticipants("carol", "bob", "bob"),
			testfixtures.WithMeetingResponse("bob", "accepted"),
			testfixtures.WithMeetingResponse("mallory", "declined"),
			testfixtures.WithMeetingRecurrence("weekly", 0, 0, &until),
			testfixtures.WithMeetingExcludedIndices(2),
			testfixtures.WithMeetingExcludedStarts(testfixtures.At(21, 10, 0)),
		).Persistence()

		if err := store.CreateMeeting(ctx, weekly); err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}
		if err := store.CreateMeeting(ctx, weekly); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetMeeting(ctx, "weekly")
		if err != nil {
			t.Fatalf("GetMeeting failed: %v", err)
		}
		if !slices.Equal(got.Participants, []string{"bob", "carol"}) {
			t.Fatalf("expected sorted unique participants, got %v", got.Participants)
		}
		if got.Responses["bob"] != "accepted" || got.Responses["carol"] != persistence.DefaultResponse || len(got.Responses) != 2 {
			t.Fatalf("unexpected responses: %v", got.Responses)
		}
		if !got.Start.Equal(weekly.Start) || got.Until == nil || !got.Until.Equal(until) {
			t.Fatalf("unexpected times: start=%v until=%v", got.Start, got.Until)
		}
		if got.Description == nil || *got.Description != "team sync" || got.Frequency != "weekly" {
			t.Fatalf("unexpected fields: %#v", got)
		}
		if !slices.Equal(got.ExcludedIndices, []int{2}) || len(got.ExcludedStarts) != 1 || !got.ExcludedStarts[0].Equal(testfixtures.At(21, 10, 0)) {
			t.Fatalf("unexpected exclusions: %v %v", got.ExcludedIndices, got.ExcludedStarts)
		}

		got.Title = "Renamed"
		got.OrganizerID = "mallory"
		got.Participants = []string{"carol"}
		got.Responses = map[string]string{"carol": "tentative"}
		got.ExcludedIndices = append(got.ExcludedIndices, 3)
		got.Status = "cancelled"
		if err := store.UpdateMeeting(ctx, got); err != nil {
			t.Fatalf("UpdateMeeting failed: %v", err)
		}
		updated, err := store.GetMeeting(ctx, "weekly")
		if err != nil {
			t.Fatalf("GetMeeting after update failed: %v", err)
		}
		if updated.Title != "Renamed" || updated.OrganizerID != "alice" || updated.Status != "cancelled" {
			t.Fatalf("unexpected update result: %#v", updated)
		}
		if !slices.Equal(updated.Participants, []string{"carol"}) || updated.Responses["carol"] != "tentative" {
			t.Fatalf("participants not replaced: %v %v", updated.Participants, updated.Responses)
		}
		if !slices.Equal(updated.ExcludedIndices, []int{2, 3}) {
			t.Fatalf("exclusions not replaced: %v", updated.ExcludedIndices)
		}

		missing := testfixtures.NewMeetingFixture(testfixtures.WithMeetingID("ghost")).Persistence()
		if err := store.UpdateMeeting(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}

		if err := store.DeleteMeeting(ctx, "weekly"); err != nil {
			t.Fatalf("DeleteMeeting failed: %v", err)
		}
		if _, err := store.GetMeeting(ctx, "weekly"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestMeetingRepository_ListFilter(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		ended := testfixtures.At(-7, 0, 0)

		fixtures := []persistence.Meeting{
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("past-one-off"),
				testfixtures.WithMeetingOrganizer("alice"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(-3, 9, 0), testfixtures.At(-3, 10, 0)),
			).Persistence(),
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("open-daily"),
				testfixtures.WithMeetingOrganizer("bob"),
				testfixtures.WithMeetingParticipants("alice"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(-30, 9, 0), testfixtures.At(-30, 9, 15)),
				testfixtures.WithMeetingRecurrence("daily", 0, 0, nil),
			).Persistence(),
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("ended-weekly"),
				testfixtures.WithMeetingOrganizer("alice"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(-60, 9, 0), testfixtures.At(-60, 10, 0)),
				testfixtures.WithMeetingRecurrence("weekly", 0, 0, &ended),
			).Persistence(),
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("today"),
				testfixtures.WithMeetingOrganizer("carol"),
				testfixtures.WithMeetingParticipants("dave"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(0, 14, 0), testfixtures.At(0, 15, 0)),
			).Persistence(),
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("next-month"),
				testfixtures.WithMeetingOrganizer("alice"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(35, 9, 0), testfixtures.At(35, 10, 0)),
			).Persistence(),
			testfixtures.NewMeetingFixture(
				testfixtures.WithMeetingID("cancelled"),
				testfixtures.WithMeetingOrganizer("alice"),
				testfixtures.WithMeetingStatus("cancelled"),
				testfixtures.WithMeetingStartEnd(testfixtures.At(1, 9, 0), testfixtures.At(1, 10, 0)),
			).Persistence(),
		}
		for _, m := range fixtures {
			if err := store.CreateMeeting(ctx, m); err != nil {
				t.Fatalf("CreateMeeting(%s) failed: %v", m.ID, err)
			}
		}

		ids := func(filter persistence.MeetingFilter) []string {
			t.Helper()
			meetings, err := store.ListMeetings(ctx, filter)
			if err != nil {
				t.Fatalf("ListMeetings failed: %v", err)
			}
			out := make([]string, len(meetings))
			for i, m := range meetings {
				out[i] = m.ID
			}
			return out
		}

		horizonStart, horizonEnd := testfixtures.At(0, 0, 0), testfixtures.At(7, 0, 0)
		got := ids(persistence.MeetingFilter{
			ParticipantIDs: []string{"alice"},
			StartsBefore:   &horizonEnd,
			EndsAfter:      &horizonStart,
		})
		if want := []string{"open-daily", "cancelled"}; !slices.Equal(got, want) {
			t.Fatalf("horizon filter: expected %v, got %v", want, got)
		}

		got = ids(persistence.MeetingFilter{
			ParticipantIDs: []string{"alice"},
			StartsBefore:   &horizonEnd,
			EndsAfter:      &horizonStart,
			Statuses:       []string{"scheduled"},
		})
		if want := []string{"open-daily"}; !slices.Equal(got, want) {
			t.Fatalf("status filter: expected %v, got %v", want, got)
		}

		if got = ids(persistence.MeetingFilter{ParticipantIDs: []string{"dave"}}); !slices.Equal(got, []string{"today"}) {
			t.Fatalf("attendee filter: expected [today], got %v", got)
		}
		if got = ids(persistence.MeetingFilter{}); len(got) != len(fixtures) || got[0] != "ended-weekly" {
			t.Fatalf("unfiltered list: expected all meetings by start, got %v", got)
		}
	})
}

func TestMeetingRepository_ListFilterKeepsSeriesTail(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		// The last occurrence starts at Until and runs for another hour.
		until := testfixtures.At(1, 10, 0)
		series := testfixtures.NewMeetingFixture(
			testfixtures.WithMeetingID("two-day-daily"),
			testfixtures.WithMeetingOrganizer("alice"),
			testfixtures.WithMeetingStartEnd(testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)),
			testfixtures.WithMeetingRecurrence("daily", 0, 0, &until),
		).Persistence()
		if err := store.CreateMeeting(ctx, series); err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}

		cases := []struct {
			name       string
			endsAfter  time.Time
			wantSeries bool
		}{
			{name: "horizon inside the last occurrence", endsAfter: testfixtures.At(1, 10, 30), wantSeries: true},
			{name: "horizon at the end of the last occurrence", endsAfter: testfixtures.At(1, 11, 0), wantSeries: false},
		}
		for _, tc := range cases {
			startsBefore := testfixtures.At(1, 12, 0)
			endsAfter := tc.endsAfter
			meetings, err := store.ListMeetings(ctx, persistence.MeetingFilter{
				ParticipantIDs: []string{"alice"},
				StartsBefore:   &startsBefore,
				EndsAfter:      &endsAfter,
			})
			if err != nil {
				t.Fatalf("%s: ListMeetings failed: %v", tc.name, err)
			}
			if got := len(meetings) == 1; got != tc.wantSeries {
				t.Fatalf("%s: expected series listed=%v, got %d meetings", tc.name, tc.wantSeries, len(meetings))
			}
		}
	})
}

func TestAvailabilityRepository(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()

		override := testfixtures.NewWindowFixture(
			testfixtures.WithWindowID("holiday-hours"),
			testfixtures.WithWindowParticipant("alice"),
			testfixtures.WithWindowDate("2024-03-13"),
			testfixtures.WithWindowMinutes(10*60, 12*60),
		).Persistence()
		monday := testfixtures.NewWindowFixture(
			testfixtures.WithWindowID("mon"),
			testfixtures.WithWindowParticipant("alice"),
			testfixtures.WithWindowEffective("2024-01-01", "2024-12-31"),
		).Persistence()
		other := testfixtures.NewWindowFixture(
			testfixtures.WithWindowID("bob-mon"),
			testfixtures.WithWindowParticipant("bob"),
		).Persistence()

		for _, w := range []persistence.AvailabilityWindow{override, monday, other} {
			if err := store.CreateWindow(ctx, w); err != nil {
				t.Fatalf("CreateWindow(%s) failed: %v", w.ID, err)
			}
		}

		got, err := store.GetWindow(ctx, "mon")
		if err != nil {
			t.Fatalf("GetWindow failed: %v", err)
		}
		if got.EffectiveFrom != "2024-01-01" || got.EffectiveUntil != "2024-12-31" || got.Date != "" || got.Disabled {
			t.Fatalf("unexpected window: %#v", got)
		}

		replacement := []persistence.AvailabilityWindow{
			testfixtures.NewWindowFixture(
				testfixtures.WithWindowID("tue"),
				testfixtures.WithWindowParticipant("alice"),
				testfixtures.WithWindowWeekday(time.Tuesday),
			).Persistence(),
			testfixtures.NewWindowFixture(
				testfixtures.WithWindowID("wed-off"),
				testfixtures.WithWindowParticipant("alice"),
				testfixtures.WithWindowWeekday(time.Wednesday),
				testfixtures.WithWindowDisabled(),
			).Persistence(),
		}
		if err := store.ReplaceWeeklyWindows(ctx, "alice", replacement); err != nil {
			t.Fatalf("ReplaceWeeklyWindows failed: %v", err)
		}

		windows, err := store.ListWindows(ctx, "alice")
		if err != nil {
			t.Fatalf("ListWindows failed: %v", err)
		}
		var ids []string
		for _, w := range windows {
			ids = append(ids, w.ID)
		}
		if want := []string{"holiday-hours", "tue", "wed-off"}; !slices.Equal(ids, want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		if !windows[2].Disabled {
			t.Fatalf("expected disabled flag to round-trip")
		}

		foreign := replacement[0]
		foreign.ID = "sneaky"
		foreign.ParticipantID = "bob"
		if err := store.ReplaceWeeklyWindows(ctx, "alice", []persistence.AvailabilityWindow{foreign}); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}

		if err := store.DeleteWindow(ctx, "holiday-hours"); err != nil {
			t.Fatalf("DeleteWindow failed: %v", err)
		}
		if _, err := store.GetWindow(ctx, "holiday-hours"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if bobs, _ := store.ListWindows(ctx, "bob"); len(bobs) != 1 {
			t.Fatalf("other participants must be untouched, got %v", bobs)
		}
	})
}

func TestBlockedTimeRepository(t *testing.T) {
	t.Parallel()

	testfixtures.ForEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()

		blocks := []persistence.BlockedTime{
			testfixtures.NewBlockFixture(
				testfixtures.WithBlockID("lunch"),
				testfixtures.WithBlockParticipant("alice"),
				testfixtures.WithBlockStartEnd(testfixtures.At(0, 12, 0), testfixtures.At(0, 13, 0)),
			).Persistence(),
			testfixtures.NewBlockFixture(
				testfixtures.WithBlockID("leave"),
				testfixtures.WithBlockParticipant("alice"),
				testfixtures.WithBlockReason("vacation"),
				testfixtures.WithBlockAllDay(),
				testfixtures.WithBlockStartEnd(testfixtures.At(1, 0, 0), testfixtures.At(2, 0, 0)),
			).Persistence(),
			testfixtures.NewBlockFixture(
				testfixtures.WithBlockID("bob-lunch"),
				testfixtures.WithBlockParticipant("bob"),
				testfixtures.WithBlockStartEnd(testfixtures.At(0, 12, 0), testfixtures.At(0, 13, 0)),
			).Persistence(),
		}
		for _, b := range blocks {
			if err := store.CreateBlockedTime(ctx, b); err != nil {
				t.Fatalf("CreateBlockedTime(%s) failed: %v", b.ID, err)
			}
		}
		if err := store.CreateBlockedTime(ctx, blocks[0]); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetBlockedTime(ctx, "leave")
		if err != nil {
			t.Fatalf("GetBlockedTime failed: %v", err)
		}
		if !got.AllDay || got.Reason != "vacation" || !got.Start.Equal(testfixtures.At(1, 0, 0)) {
			t.Fatalf("unexpected block: %#v", got)
		}

		// A block ending exactly at the window start does not overlap.
		list, err := store.ListBlockedTime(ctx, "alice", testfixtures.At(0, 13, 0), testfixtures.At(3, 0, 0))
		if err != nil {
			t.Fatalf("ListBlockedTime failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "leave" {
			t.Fatalf("expected only the leave block, got %#v", list)
		}

		list, err = store.ListBlockedTime(ctx, "alice", testfixtures.At(0, 0, 0), testfixtures.At(3, 0, 0))
		if err != nil {
			t.Fatalf("ListBlockedTime failed: %v", err)
		}
		if len(list) != 2 || list[0].ID != "lunch" || list[1].ID != "leave" {
			t.Fatalf("expected blocks ordered by start, got %#v", list)
		}

		if err := store.DeleteBlockedTime(ctx, "lunch"); err != nil {
			t.Fatalf("DeleteBlockedTime failed: %v", err)
		}
		if err := store.DeleteBlockedTime(ctx, "lunch"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
