package scheduler

import (
	"slices"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

// ResponseStatus is a participant's answer to an invitation.
type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseTentative ResponseStatus = "tentative"
)

// Valid reports whether s is a known response.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponsePending, ResponseAccepted, ResponseDeclined, ResponseTentative:
		return true
	}
	return false
}

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Blocking reports whether meetings in this state occupy their attendees.
// The empty status is treated as scheduled.
func (s Status) Blocking() bool {
	return s == "" || s == StatusScheduled || s == StatusInProgress
}

// Meeting is a one-off meeting or the anchor of a recurring series.
type Meeting struct {
	ID              string
	OrganizerID     string
	Title           string
	Anchor          interval.Interval
	Rule            recurrence.Rule
	ExcludedIndices []int
	ExcludedStarts  []time.Time
	Participants    []string
	Responses       map[string]ResponseStatus
	Status          Status
}

// Series returns the recurrence view of the meeting.
func (m Meeting) Series() recurrence.Series {
	return recurrence.Series{
		ID:              m.ID,
		Anchor:          m.Anchor,
		Rule:            m.Rule,
		ExcludedIndices: m.ExcludedIndices,
		ExcludedStarts:  m.ExcludedStarts,
	}
}

// Attendees returns the organizer and the invited participants, sorted and
// without duplicates.
func (m Meeting) Attendees() []string {
	out := make([]string, 0, len(m.Participants)+1)
	if m.OrganizerID != "" {
		out = append(out, m.OrganizerID)
	}
	out = append(out, m.Participants...)
	return normalizeIDs(out)
}

// Occupies reports whether the meeting blocks participantID: the meeting
// must be in a blocking state, the participant must attend, and must not
// have declined.
func (m Meeting) Occupies(participantID string) bool {
	if !m.Status.Blocking() {
		return false
	}
	if m.Responses[participantID] == ResponseDeclined {
		return false
	}
	if m.OrganizerID == participantID {
		return true
	}
	return slices.Contains(m.Participants, participantID)
}

// Calendar is everything that can occupy one participant over a horizon.
type Calendar struct {
	ParticipantID string
	Meetings      []Meeting
	Blocks        []availability.Block
}

// Empty reports whether the calendar holds no meetings or blocks.
func (c Calendar) Empty() bool {
	return len(c.Meetings) == 0 && len(c.Blocks) == 0
}

// normalizeIDs trims, drops empties and duplicates, and sorts.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
