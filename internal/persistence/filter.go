package persistence

import (
	"slices"
	"time"
)

// FrequencyNone is the Frequency of a meeting that does not repeat.
const FrequencyNone = "none"

// Matches reports whether the meeting passes every set field of the filter.
func (f MeetingFilter) Matches(m Meeting) bool {
	if len(f.ParticipantIDs) > 0 {
		involved := slices.Contains(f.ParticipantIDs, m.OrganizerID)
		for _, p := range m.Participants {
			if involved {
				break
			}
			involved = slices.Contains(f.ParticipantIDs, p)
		}
		if !involved {
			return false
		}
	}
	if f.StartsBefore != nil && !m.Start.Before(*f.StartsBefore) {
		return false
	}
	if f.EndsAfter != nil {
		if m.Frequency == "" || m.Frequency == FrequencyNone {
			if !m.End.After(*f.EndsAfter) {
				return false
			}
		} else if m.Until != nil && !m.Until.Add(m.End.Sub(m.Start)).After(*f.EndsAfter) {
			// Until bounds occurrence starts; the last one ends a duration later.
			return false
		}
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status) {
		return false
	}
	return true
}

// Defaults applied to stored meetings.
const (
	DefaultMeetingStatus = "scheduled"
	DefaultResponse      = "pending"
)

// NormalizeMeeting returns the form in which every store keeps a meeting:
// UTC second-precision times, sorted unique participants, one response per
// participant and default frequency and status. The input is not modified.
func NormalizeMeeting(m Meeting) Meeting {
	out := m
	out.Start = utcSecond(m.Start)
	out.End = utcSecond(m.End)
	if m.Until != nil {
		u := utcSecond(*m.Until)
		out.Until = &u
	}
	if m.Description != nil {
		d := *m.Description
		out.Description = &d
	}
	if out.Frequency == "" {
		out.Frequency = FrequencyNone
	}
	if out.Status == "" {
		out.Status = DefaultMeetingStatus
	}

	out.Participants = make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p != "" && !slices.Contains(out.Participants, p) {
			out.Participants = append(out.Participants, p)
		}
	}
	slices.Sort(out.Participants)

	out.Responses = make(map[string]string, len(out.Participants))
	for _, p := range out.Participants {
		out.Responses[p] = DefaultResponse
		if r := m.Responses[p]; r != "" {
			out.Responses[p] = r
		}
	}

	out.ExcludedIndices = append([]int{}, m.ExcludedIndices...)
	slices.Sort(out.ExcludedIndices)
	out.ExcludedIndices = slices.Compact(out.ExcludedIndices)
	out.ExcludedStarts = make([]time.Time, 0, len(m.ExcludedStarts))
	for _, s := range m.ExcludedStarts {
		out.ExcludedStarts = append(out.ExcludedStarts, utcSecond(s))
	}
	slices.SortFunc(out.ExcludedStarts, time.Time.Compare)
	out.ExcludedStarts = slices.CompactFunc(out.ExcludedStarts, time.Time.Equal)
	return out
}

func utcSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
