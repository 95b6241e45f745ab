package scheduler

import (
	"context"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

// MeetingLoader returns the meetings a participant attends or organizes that
// may have occurrences within horizon, including recurring series whose
// anchor precedes it.
type MeetingLoader interface {
	LoadMeetings(ctx context.Context, participantID string, horizon interval.Interval) ([]Meeting, error)
}

// AvailabilityLoader returns every window that could apply to day, including
// weekday entries and date overrides.
type AvailabilityLoader interface {
	LoadAvailability(ctx context.Context, participantID string, day interval.Date) ([]availability.Window, error)
}

// BlockedTimeLoader returns blocked time intersecting horizon.
type BlockedTimeLoader interface {
	LoadBlockedTime(ctx context.Context, participantID string, horizon interval.Interval) ([]availability.Block, error)
}

// Source bundles the read interfaces the engine consumes.
type Source interface {
	MeetingLoader
	AvailabilityLoader
	BlockedTimeLoader
}

// ParticipantDirectory is optionally implemented by a Source that can tell
// which participant identifiers exist.
type ParticipantDirectory interface {
	MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error)
}

// Claimer provides the exclusive per-(participant, day) claims taken by
// authoritative booking. Acquire blocks until every key is held or ctx ends.
type Claimer interface {
	Acquire(ctx context.Context, keys []string) (release func(context.Context) error, err error)
}
