package application

import (
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// Participant is a person who can organize or attend meetings.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParticipantInput captures caller provided participant fields. An empty ID
// is assigned by the service.
type ParticipantInput struct {
	ID          string
	Email       string
	DisplayName string
}

// RecurrenceInput describes how a meeting repeats. Frequency accepts none,
// daily, weekly, biweekly, monthly and custom; custom requires IntervalDays.
type RecurrenceInput struct {
	Frequency    string
	IntervalDays int
	Count        int
	Until        *time.Time
}

// MeetingInput captures caller provided meeting fields.
type MeetingInput struct {
	OrganizerID    string
	Title          string
	Description    *string
	Start          time.Time
	End            time.Time
	Recurrence     RecurrenceInput
	ParticipantIDs []string
}

// Meeting represents a persisted meeting series. One-off meetings carry the
// "none" frequency.
type Meeting struct {
	ID              string
	OrganizerID     string
	Title           string
	Description     *string
	Start           time.Time
	End             time.Time
	Recurrence      RecurrenceInput
	ExcludedIndices []int
	ExcludedStarts  []time.Time
	ParticipantIDs  []string
	Responses       map[string]scheduler.ResponseStatus
	Status          scheduler.Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookingResult is the outcome of an authoritative create or update.
type BookingResult struct {
	Meeting Meeting
	// Report holds the conflict check performed while the slot was claimed.
	// It is clean on success and may be flagged Truncated for long series.
	Report scheduler.ConflictReport
}

// CheckConflictsParams wraps an advisory conflict check.
type CheckConflictsParams struct {
	Start           time.Time
	End             time.Time
	ParticipantIDs  []string
	IgnoreMeetingID string
}

// SuggestSlotsParams wraps a slot search. PreferredDate uses YYYY-MM-DD and
// PreferredTime HH:MM in the reference timezone; both zero values select
// defaults, with PreferredDate defaulting to today.
type SuggestSlotsParams struct {
	PreferredDate    string
	PreferredTime    string
	DurationMinutes  int
	ParticipantIDs   []string
	NumSuggestions   int
	SearchWindowDays int
	IgnoreMeetingID  string
	// IncludePast keeps candidates that start before the current time.
	IncludePast bool
}

// NextAvailableParams wraps a search for the earliest common slot.
type NextAvailableParams struct {
	After           time.Time
	DurationMinutes int
	ParticipantIDs  []string
	MaxDays         int
}

// ListPeriod identifies the range preset requested for agenda listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start week containing the reference time.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference time.
	ListPeriodMonth ListPeriod = "month"
)

// AgendaParams selects the range of a participant's agenda either by
// explicit bounds or by a period around Reference (now when zero).
type AgendaParams struct {
	ParticipantID string
	Period        ListPeriod
	Reference     time.Time
	Start         *time.Time
	End           *time.Time
}

// Agenda lists the occupied spans of one participant.
type Agenda struct {
	ParticipantID string
	Start         time.Time
	End           time.Time
	Entries       []scheduler.BusyEntry
	Truncated     bool
}

// ListMeetingsParams narrows meeting listings.
type ListMeetingsParams struct {
	ParticipantID string
	Start         *time.Time
	End           *time.Time
	Statuses      []scheduler.Status
}

// CancelOccurrenceParams identifies a single occurrence of a recurring
// meeting by sequence index or by its start instant. Exactly one is required.
type CancelOccurrenceParams struct {
	MeetingID string
	Index     *int
	Start     *time.Time
}

// WindowInput captures an availability window. Either Weekday (0 is Sunday)
// or Date must be given; Start and End use HH:MM with 24:00 allowed as end.
type WindowInput struct {
	ParticipantID  string
	Weekday        *int
	Date           string
	Start          string
	End            string
	EffectiveFrom  string
	EffectiveUntil string
	Disabled       bool
}

// BusinessHoursInput replaces a participant's weekly windows with a
// Monday to Friday set. Empty bounds default to 08:00 and 18:00.
type BusinessHoursInput struct {
	ParticipantID string
	Start         string
	End           string
}

// BlockedTimeInput captures explicit unavailability.
type BlockedTimeInput struct {
	ParticipantID string
	Start         time.Time
	End           time.Time
	Reason        string
	AllDay        bool
}

// AvailabilityDay is a participant's free time on one day.
type AvailabilityDay struct {
	ParticipantID string
	Date          string
	Free          []FreeSpan
}

// FreeSpan is one free interval in UTC.
type FreeSpan struct {
	Start time.Time
	End   time.Time
}

// Window and Block are re-exported so callers need not import the domain
// packages for read results.
type (
	Window = availability.Window
	Block  = availability.Block
)
