package persistence

import (
	"context"
	"time"
)

// ParticipantRepository exposes CRUD operations for participants.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	// MissingParticipantIDs returns the subset of ids with no stored participant,
	// in input order.
	MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error)
}

// MeetingFilter narrows meeting queries. Zero values do not filter.
type MeetingFilter struct {
	// ParticipantIDs matches meetings organized or attended by any of the IDs.
	ParticipantIDs []string
	// StartsBefore keeps meetings whose first occurrence starts before it.
	StartsBefore *time.Time
	// EndsAfter drops one-off meetings ending at or before it. Recurring
	// meetings are dropped only when their Until is before it.
	EndsAfter *time.Time
	// Statuses keeps meetings in any of the listed statuses.
	Statuses []string
}

// MeetingRepository stores meetings with their participants, responses and
// exclusions.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	UpdateMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
}

// AvailabilityRepository stores declared availability windows.
type AvailabilityRepository interface {
	CreateWindow(ctx context.Context, window AvailabilityWindow) error
	GetWindow(ctx context.Context, id string) (AvailabilityWindow, error)
	ListWindows(ctx context.Context, participantID string) ([]AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id string) error
	// ReplaceWeeklyWindows atomically swaps every weekly window of the
	// participant for the supplied set. Date overrides are untouched.
	ReplaceWeeklyWindows(ctx context.Context, participantID string, windows []AvailabilityWindow) error
}

// BlockedTimeRepository stores explicit unavailability.
type BlockedTimeRepository interface {
	CreateBlockedTime(ctx context.Context, block BlockedTime) error
	GetBlockedTime(ctx context.Context, id string) (BlockedTime, error)
	// ListBlockedTime returns blocks of the participant overlapping [start, end).
	ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]BlockedTime, error)
	DeleteBlockedTime(ctx context.Context, id string) error
}

// Store bundles every repository behind one connection.
type Store interface {
	ParticipantRepository
	MeetingRepository
	AvailabilityRepository
	BlockedTimeRepository
	Ping(ctx context.Context) error
	Close() error
}
