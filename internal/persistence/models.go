package persistence

import "time"

// Participant is a person who can attend meetings.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Meeting is a stored meeting series. A one-off meeting has Frequency "none".
type Meeting struct {
	ID           string
	OrganizerID  string
	Title        string
	Description  *string
	Start        time.Time
	End          time.Time
	Frequency    string
	IntervalDays int
	Count        int
	Until        *time.Time
	// ExcludedIndices and ExcludedStarts identify cancelled occurrences.
	ExcludedIndices []int
	ExcludedStarts  []time.Time
	Participants    []string
	// Responses is keyed by participant ID. Entries for IDs that are not in
	// Participants are not stored.
	Responses map[string]string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is a recurring weekly window or, when Date is set, a
// single-day override. Dates use the YYYY-MM-DD form and minutes count from
// local midnight in the reference zone.
type AvailabilityWindow struct {
	ID             string
	ParticipantID  string
	Weekday        int
	Date           string
	StartMinute    int
	EndMinute      int
	EffectiveFrom  string
	EffectiveUntil string
	Disabled       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BlockedTime is an explicit unavailability for a participant.
type BlockedTime struct {
	ID            string
	ParticipantID string
	Start         time.Time
	End           time.Time
	Reason        string
	AllDay        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
