package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

// 2024-03-11 is a Monday.
var monday = interval.Date{Year: 2024, Month: time.March, Day: 11}

func at(day interval.Date, hour, minute int) time.Time {
	return time.Date(day.Year, day.Month, day.Day, hour, minute, 0, 0, eat)
}

func span(day interval.Date, h1, m1, h2, m2 int) interval.Interval {
	return interval.Interval{Start: at(day, h1, m1), End: at(day, h2, m2)}
}

// memorySource is a mutex-guarded Source used by the engine tests.
type memorySource struct {
	mu       sync.Mutex
	meetings []Meeting
	windows  []availability.Window
	blocks   []availability.Block
}

func (s *memorySource) addMeeting(m Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings = append(s.meetings, m)
}

func (s *memorySource) addWindow(participant string, weekday time.Weekday, from, to availability.ClockTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, availability.Window{ParticipantID: participant, Weekday: weekday, Start: from, End: to})
}

func (s *memorySource) addBlock(id, participant string, iv interval.Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, availability.Block{ID: id, ParticipantID: participant, Interval: iv, Reason: availability.ReasonBusy})
}

func (s *memorySource) LoadMeetings(ctx context.Context, participantID string, horizon interval.Interval) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Meeting
	for _, m := range s.meetings {
		if slices.Contains(m.Attendees(), participantID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memorySource) LoadAvailability(ctx context.Context, participantID string, day interval.Date) ([]availability.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []availability.Window
	for _, w := range s.windows {
		if w.ParticipantID == participantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memorySource) LoadBlockedTime(ctx context.Context, participantID string, horizon interval.Interval) ([]availability.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []availability.Block
	for _, b := range s.blocks {
		if b.ParticipantID == participantID && b.Interval.Overlaps(horizon) {
			out = append(out, b)
		}
	}
	return out, nil
}

// directorySource adds a participant directory to memorySource.
type directorySource struct {
	*memorySource
	known map[string]bool
}

func (d directorySource) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !d.known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
