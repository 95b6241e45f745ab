package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

var (
	participantCounter uint64
	meetingCounter     uint64
	windowCounter      uint64
	blockCounter       uint64
)

// referenceTime is Monday 2024-03-11 09:00 in East Africa Time.
var referenceTime = time.Date(2024, time.March, 11, 6, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EAT is the reference zone used by scheduling fixtures.
var EAT = time.FixedZone("EAT", 3*60*60)

// At returns the instant at hour:minute EAT on the day offset days after the
// reference Monday.
func At(days, hour, minute int) time.Time {
	return time.Date(2024, time.March, 11+days, hour, minute, 0, 0, EAT)
}

// -------------------------- Participant fixtures --------------------------

// ParticipantFixture represents a deterministic participant record.
type ParticipantFixture struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant fixture.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	id := fmt.Sprintf("participant-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ParticipantFixture{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: fmt.Sprintf("Participant %03d", idx),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithParticipantID overrides the generated participant ID.
func WithParticipantID(id string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.ID = id
	}
}

// WithParticipantDisplayName overrides the generated display name.
func WithParticipantDisplayName(name string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.DisplayName = name
	}
}

// Persistence converts the fixture into its stored form.
func (f ParticipantFixture) Persistence() persistence.Participant {
	return persistence.Participant{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ---------------------------- Meeting fixtures ----------------------------

// MeetingFixture represents a deterministic meeting series.
type MeetingFixture struct {
	ID              string
	OrganizerID     string
	Title           string
	Description     *string
	Start           time.Time
	End             time.Time
	Frequency       string
	IntervalDays    int
	Count           int
	Until           *time.Time
	ExcludedIndices []int
	ExcludedStarts  []time.Time
	Participants    []string
	Responses       map[string]string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a one-hour one-off meeting starting at the
// reference time.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		ID:          fmt.Sprintf("meeting-%03d", idx),
		OrganizerID: "organizer-001",
		Title:       fmt.Sprintf("Meeting %03d", idx),
		Start:       referenceTime,
		End:         referenceTime.Add(time.Hour),
		Frequency:   persistence.FrequencyNone,
		Status:      persistence.DefaultMeetingStatus,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMeetingID overrides the generated meeting ID.
func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) {
		f.ID = id
	}
}

// WithMeetingOrganizer overrides the organizer.
func WithMeetingOrganizer(id string) MeetingOption {
	return func(f *MeetingFixture) {
		f.OrganizerID = id
	}
}

// WithMeetingTitle overrides the title.
func WithMeetingTitle(title string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Title = title
	}
}

// WithMeetingDescription sets the description.
func WithMeetingDescription(description string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Description = &description
	}
}

// WithMeetingStartEnd overrides the first occurrence.
func WithMeetingStartEnd(start, end time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithMeetingParticipants replaces the participant list.
func WithMeetingParticipants(participants ...string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Participants = append([]string(nil), participants...)
	}
}

// WithMeetingResponse records a participant response.
func WithMeetingResponse(participantID, response string) MeetingOption {
	return func(f *MeetingFixture) {
		if f.Responses == nil {
			f.Responses = make(map[string]string)
		}
		f.Responses[participantID] = response
	}
}

// WithMeetingRecurrence makes the meeting repeat. Zero count and nil until
// leave the series unbounded.
func WithMeetingRecurrence(frequency string, intervalDays, count int, until *time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.Frequency = frequency
		f.IntervalDays = intervalDays
		f.Count = count
		f.Until = until
	}
}

// WithMeetingExcludedIndices cancels occurrences by index.
func WithMeetingExcludedIndices(indices ...int) MeetingOption {
	return func(f *MeetingFixture) {
		f.ExcludedIndices = append([]int(nil), indices...)
	}
}

// WithMeetingExcludedStarts cancels occurrences by start instant.
func WithMeetingExcludedStarts(starts ...time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.ExcludedStarts = append([]time.Time(nil), starts...)
	}
}

// WithMeetingStatus overrides the lifecycle status.
func WithMeetingStatus(status string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Status = status
	}
}

// Persistence converts the fixture into its stored form.
func (f MeetingFixture) Persistence() persistence.Meeting {
	responses := make(map[string]string, len(f.Responses))
	for k, v := range f.Responses {
		responses[k] = v
	}
	return persistence.Meeting{
		ID:              f.ID,
		OrganizerID:     f.OrganizerID,
		Title:           f.Title,
		Description:     copyStringPtr(f.Description),
		Start:           f.Start,
		End:             f.End,
		Frequency:       f.Frequency,
		IntervalDays:    f.IntervalDays,
		Count:           f.Count,
		Until:           copyTimePtr(f.Until),
		ExcludedIndices: append([]int(nil), f.ExcludedIndices...),
		ExcludedStarts:  append([]time.Time(nil), f.ExcludedStarts...),
		Participants:    append([]string(nil), f.Participants...),
		Responses:       responses,
		Status:          f.Status,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// ------------------------ Availability fixtures ------------------------

// WindowFixture represents a deterministic availability window.
type WindowFixture struct {
	ID             string
	ParticipantID  string
	Weekday        time.Weekday
	Date           string
	StartMinute    int
	EndMinute      int
	EffectiveFrom  string
	EffectiveUntil string
	Disabled       bool
}

// WindowOption configures the generated window fixture.
type WindowOption func(*WindowFixture)

// NewWindowFixture returns a Monday 09:00-17:00 weekly window.
func NewWindowFixture(opts ...WindowOption) WindowFixture {
	idx := atomic.AddUint64(&windowCounter, 1)
	fixture := WindowFixture{
		ID:            fmt.Sprintf("window-%03d", idx),
		ParticipantID: "participant-001",
		Weekday:       time.Monday,
		StartMinute:   9 * 60,
		EndMinute:     17 * 60,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWindowID overrides the generated window ID.
func WithWindowID(id string) WindowOption {
	return func(f *WindowFixture) {
		f.ID = id
	}
}

// WithWindowParticipant overrides the owner.
func WithWindowParticipant(id string) WindowOption {
	return func(f *WindowFixture) {
		f.ParticipantID = id
	}
}

// WithWindowWeekday sets a weekly window on weekday.
func WithWindowWeekday(weekday time.Weekday) WindowOption {
	return func(f *WindowFixture) {
		f.Weekday = weekday
	}
}

// WithWindowDate turns the window into an override for date (YYYY-MM-DD).
func WithWindowDate(date string) WindowOption {
	return func(f *WindowFixture) {
		f.Date = date
	}
}

// WithWindowMinutes sets the window bounds in minutes from midnight.
func WithWindowMinutes(start, end int) WindowOption {
	return func(f *WindowFixture) {
		f.StartMinute = start
		f.EndMinute = end
	}
}

// WithWindowEffective limits the dates on which a weekly window applies.
func WithWindowEffective(from, until string) WindowOption {
	return func(f *WindowFixture) {
		f.EffectiveFrom = from
		f.EffectiveUntil = until
	}
}

// WithWindowDisabled marks the window disabled.
func WithWindowDisabled() WindowOption {
	return func(f *WindowFixture) {
		f.Disabled = true
	}
}

// Persistence converts the fixture into its stored form.
func (f WindowFixture) Persistence() persistence.AvailabilityWindow {
	return persistence.AvailabilityWindow{
		ID:             f.ID,
		ParticipantID:  f.ParticipantID,
		Weekday:        int(f.Weekday),
		Date:           f.Date,
		StartMinute:    f.StartMinute,
		EndMinute:      f.EndMinute,
		EffectiveFrom:  f.EffectiveFrom,
		EffectiveUntil: f.EffectiveUntil,
		Disabled:       f.Disabled,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
}

// ------------------------ Blocked time fixtures ------------------------

// BlockFixture represents a deterministic blocked time entry.
type BlockFixture struct {
	ID            string
	ParticipantID string
	Start         time.Time
	End           time.Time
	Reason        string
	AllDay        bool
}

// BlockOption configures the generated block fixture.
type BlockOption func(*BlockFixture)

// NewBlockFixture returns a one-hour busy block at the reference time.
func NewBlockFixture(opts ...BlockOption) BlockFixture {
	idx := atomic.AddUint64(&blockCounter, 1)
	fixture := BlockFixture{
		ID:            fmt.Sprintf("block-%03d", idx),
		ParticipantID: "participant-001",
		Start:         referenceTime,
		End:           referenceTime.Add(time.Hour),
		Reason:        "busy",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBlockID overrides the generated block ID.
func WithBlockID(id string) BlockOption {
	return func(f *BlockFixture) {
		f.ID = id
	}
}

// WithBlockParticipant overrides the owner.
func WithBlockParticipant(id string) BlockOption {
	return func(f *BlockFixture) {
		f.ParticipantID = id
	}
}

// WithBlockStartEnd overrides the blocked interval.
func WithBlockStartEnd(start, end time.Time) BlockOption {
	return func(f *BlockFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBlockReason overrides the reason.
func WithBlockReason(reason string) BlockOption {
	return func(f *BlockFixture) {
		f.Reason = reason
	}
}

// WithBlockAllDay marks the block as all-day.
func WithBlockAllDay() BlockOption {
	return func(f *BlockFixture) {
		f.AllDay = true
	}
}

// Persistence converts the fixture into its stored form.
func (f BlockFixture) Persistence() persistence.BlockedTime {
	return persistence.BlockedTime{
		ID:            f.ID,
		ParticipantID: f.ParticipantID,
		Start:         f.Start,
		End:           f.End,
		Reason:        f.Reason,
		AllDay:        f.AllDay,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
