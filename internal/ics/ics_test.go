package ics

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

var eat = time.FixedZone("EAT", 3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, eat)
}

func span(start, end time.Time) interval.Interval {
	return interval.Interval{Start: start, End: end}
}

var march = span(at(1, 0, 0), at(31, 0, 0))

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	entries := []scheduler.BusyEntry{
		{Kind: scheduler.ConflictKindMeeting, SourceID: "m1", Title: "Standup", OccurrenceIndex: 0, Interval: span(at(11, 10, 0), at(11, 10, 30))},
		{Kind: scheduler.ConflictKindMeeting, SourceID: "m1", Title: "Standup", OccurrenceIndex: 1, Interval: span(at(18, 10, 0), at(18, 10, 30))},
		{Kind: scheduler.ConflictKindBlockedTime, SourceID: "b1", Reason: availability.ReasonVacation, Interval: span(at(12, 0, 0), at(14, 0, 0))},
	}

	var buf bytes.Buffer
	if err := Export(&buf, entries, ExportOptions{ParticipantID: "alice", Stamp: at(1, 0, 0)}); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	doc := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:" + ProductID, "UID:m1-1@meeting-tool", "SUMMARY:Standup", "CATEGORIES:VACATION"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in exported calendar:\n%s", want, doc)
		}
	}

	out, err := Import(strings.NewReader(doc), ImportOptions{ParticipantID: "bob", Horizon: march, Location: eat})
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if out.Skipped != 0 || len(out.Blocks) != len(entries) {
		t.Fatalf("expected %d blocks, got %+v", len(entries), out)
	}
	for i, block := range out.Blocks {
		if !block.Interval.Equal(entries[i].Interval) {
			t.Fatalf("block %d: expected %v, got %v", i, entries[i].Interval, block.Interval)
		}
		if block.ParticipantID != "bob" {
			t.Fatalf("block %d: unexpected participant %q", i, block.ParticipantID)
		}
	}
	if out.Blocks[0].Reason != availability.ReasonBusy || out.Blocks[2].Reason != availability.ReasonVacation {
		t.Fatalf("unexpected reasons %q %q", out.Blocks[0].Reason, out.Blocks[2].Reason)
	}
}

var recurringCalendar = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:gym@test
DTSTAMP:20240301T000000Z
DTSTART:20240304T150000Z
DTEND:20240304T160000Z
RRULE:FREQ=WEEKLY;BYDAY=MO
EXDATE:20240318T150000Z
SUMMARY:Gym
CATEGORIES:PERSONAL
END:VEVENT
BEGIN:VEVENT
UID:free@test
DTSTAMP:20240301T000000Z
DTSTART:20240305T090000Z
DTEND:20240305T100000Z
TRANSP:TRANSPARENT
SUMMARY:Focus
END:VEVENT
BEGIN:VEVENT
UID:offsite@test
DTSTAMP:20240301T000000Z
DTSTART;VALUE=DATE:20240320
DTEND;VALUE=DATE:20240322
SUMMARY:Offsite
END:VEVENT
BEGIN:VEVENT
UID:dropped@test
DTSTAMP:20240301T000000Z
DTSTART:20240306T090000Z
DTEND:20240306T100000Z
STATUS:CANCELLED
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

func TestImport(t *testing.T) {
	t.Parallel()

	t.Run("expands recurrences and skips non-blocking events", func(t *testing.T) {
		t.Parallel()

		out, err := Import(strings.NewReader(recurringCalendar), ImportOptions{
			ParticipantID: "alice",
			Horizon:       span(at(10, 0, 0), at(28, 0, 0)),
			Location:      eat,
		})
		if err != nil {
			t.Fatalf("Import returned error: %v", err)
		}
		if out.Skipped != 2 {
			t.Fatalf("expected transparent and cancelled events to be skipped, got %d", out.Skipped)
		}

		var gym, allDay []availability.Block
		for _, b := range out.Blocks {
			if b.AllDay {
				allDay = append(allDay, b)
			} else {
				gym = append(gym, b)
			}
		}
		// Mondays 11 and 25 March; 18 March is excluded and 4 March is before the horizon.
		if len(gym) != 2 || !gym[0].Interval.Start.Equal(at(11, 18, 0)) || !gym[1].Interval.Start.Equal(at(25, 18, 0)) {
			t.Fatalf("unexpected recurring blocks %+v", gym)
		}
		if gym[0].Reason != availability.ReasonPersonal {
			t.Fatalf("expected category to map to a reason, got %q", gym[0].Reason)
		}
		if len(allDay) != 1 || !allDay[0].Interval.Equal(span(at(20, 0, 0), at(22, 0, 0))) {
			t.Fatalf("unexpected all-day block %+v", allDay)
		}
	})

	t.Run("caps occurrences per event", func(t *testing.T) {
		t.Parallel()

		out, err := Import(strings.NewReader(recurringCalendar), ImportOptions{
			Horizon:        span(at(1, 0, 0), at(31, 0, 0)),
			Location:       eat,
			MaxOccurrences: 1,
		})
		if err != nil {
			t.Fatalf("Import returned error: %v", err)
		}
		if !out.Truncated {
			t.Fatalf("expected truncation to be reported")
		}
	})

	t.Run("rejects empty input and horizon", func(t *testing.T) {
		t.Parallel()

		if _, err := Import(strings.NewReader("  "), ImportOptions{Horizon: march}); !errors.Is(err, ErrEmptyCalendar) {
			t.Fatalf("expected ErrEmptyCalendar, got %v", err)
		}
		if _, err := Import(strings.NewReader(recurringCalendar), ImportOptions{}); !errors.Is(err, ErrInvalidHorizon) {
			t.Fatalf("expected ErrInvalidHorizon, got %v", err)
		}
	})
}
