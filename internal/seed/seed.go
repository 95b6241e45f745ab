// Package seed loads YAML documents describing participants, availability,
// blocked time and meetings, and applies them through the application
// services so that seeded data passes the same validation and booking rules
// as API traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// Document is the top-level seed file.
type Document struct {
	Participants []Participant `yaml:"participants"`
	Windows      []Window      `yaml:"windows"`
	BlockedTime  []BlockedTime `yaml:"blocked_time"`
	Meetings     []Meeting     `yaml:"meetings"`
}

// Participant registers a directory entry and optional business hours.
type Participant struct {
	ID            string         `yaml:"id"`
	Email         string         `yaml:"email"`
	DisplayName   string         `yaml:"display_name"`
	BusinessHours *BusinessHours `yaml:"business_hours"`
}

// BusinessHours is the Monday to Friday window set; empty bounds use 08:00 to 18:00.
type BusinessHours struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Window is a weekly window or a date override.
type Window struct {
	Participant    string `yaml:"participant"`
	Weekday        *int   `yaml:"weekday"`
	Date           string `yaml:"date"`
	Start          string `yaml:"start"`
	End            string `yaml:"end"`
	EffectiveFrom  string `yaml:"effective_from"`
	EffectiveUntil string `yaml:"effective_until"`
	Disabled       bool   `yaml:"disabled"`
}

// BlockedTime is a span of unavailability.
type BlockedTime struct {
	Participant string    `yaml:"participant"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	Reason      string    `yaml:"reason"`
	AllDay      bool      `yaml:"all_day"`
}

// Meeting is booked authoritatively; responses and status are applied after
// the booking succeeds.
type Meeting struct {
	Organizer    string            `yaml:"organizer"`
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Start        time.Time         `yaml:"start"`
	End          time.Time         `yaml:"end"`
	Participants []string          `yaml:"participants"`
	Recurrence   *Recurrence       `yaml:"recurrence"`
	Responses    map[string]string `yaml:"responses"`
	Status       string            `yaml:"status"`
}

// Recurrence mirrors the meeting recurrence input.
type Recurrence struct {
	Frequency    string     `yaml:"frequency"`
	IntervalDays int        `yaml:"interval_days"`
	Count        int        `yaml:"count"`
	Until        *time.Time `yaml:"until"`
}

// Services are the application services Apply writes through.
type Services struct {
	Participants *application.ParticipantService
	Availability *application.AvailabilityService
	Meetings     *application.MeetingService
}

// Summary counts what Apply stored.
type Summary struct {
	Participants int
	Windows      int
	BlockedTime  int
	Meetings     int
	// MeetingIDs lists the generated identifiers in document order.
	MeetingIDs []string
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("seed: decode: %w", err)
	}
	return doc, nil
}

// LoadFile parses the seed document at path.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// Apply stores doc in order: participants, windows, blocked time, meetings.
// It stops at the first failure and reports which entry caused it; entries
// stored before the failure are kept.
func Apply(ctx context.Context, svc Services, doc Document) (Summary, error) {
	var sum Summary

	for i, p := range doc.Participants {
		if _, err := svc.Participants.SaveParticipant(ctx, application.ParticipantInput{
			ID: p.ID, Email: p.Email, DisplayName: p.DisplayName,
		}); err != nil {
			return sum, entryError("participants", i, err)
		}
		sum.Participants++
		if p.BusinessHours == nil {
			continue
		}
		windows, err := svc.Availability.SetBusinessHours(ctx, application.BusinessHoursInput{
			ParticipantID: p.ID, Start: p.BusinessHours.Start, End: p.BusinessHours.End,
		})
		if err != nil {
			return sum, entryError("participants", i, err)
		}
		sum.Windows += len(windows)
	}

	for i, w := range doc.Windows {
		if _, err := svc.Availability.AddWindow(ctx, application.WindowInput{
			ParticipantID:  w.Participant,
			Weekday:        w.Weekday,
			Date:           w.Date,
			Start:          w.Start,
			End:            w.End,
			EffectiveFrom:  w.EffectiveFrom,
			EffectiveUntil: w.EffectiveUntil,
			Disabled:       w.Disabled,
		}); err != nil {
			return sum, entryError("windows", i, err)
		}
		sum.Windows++
	}

	for i, b := range doc.BlockedTime {
		if _, err := svc.Availability.AddBlockedTime(ctx, application.BlockedTimeInput{
			ParticipantID: b.Participant, Start: b.Start, End: b.End, Reason: b.Reason, AllDay: b.AllDay,
		}); err != nil {
			return sum, entryError("blocked_time", i, err)
		}
		sum.BlockedTime++
	}

	for i, m := range doc.Meetings {
		id, err := applyMeeting(ctx, svc.Meetings, m)
		if err != nil {
			return sum, entryError("meetings", i, err)
		}
		sum.Meetings++
		sum.MeetingIDs = append(sum.MeetingIDs, id)
	}
	return sum, nil
}

func applyMeeting(ctx context.Context, meetings *application.MeetingService, m Meeting) (string, error) {
	input := application.MeetingInput{
		OrganizerID:    m.Organizer,
		Title:          m.Title,
		Start:          m.Start,
		End:            m.End,
		ParticipantIDs: m.Participants,
	}
	if m.Description != "" {
		desc := m.Description
		input.Description = &desc
	}
	if r := m.Recurrence; r != nil {
		input.Recurrence = application.RecurrenceInput{
			Frequency: r.Frequency, IntervalDays: r.IntervalDays, Count: r.Count, Until: r.Until,
		}
	}

	result, err := meetings.CreateMeeting(ctx, input)
	if err != nil {
		return "", err
	}
	id := result.Meeting.ID
	for participant, response := range m.Responses {
		if _, err := meetings.Respond(ctx, id, participant, scheduler.ResponseStatus(response)); err != nil {
			return id, err
		}
	}
	if m.Status != "" && scheduler.Status(m.Status) != scheduler.StatusScheduled {
		if _, err := meetings.SetStatus(ctx, id, scheduler.Status(m.Status)); err != nil {
			return id, err
		}
	}
	return id, nil
}

func entryError(section string, index int, err error) error {
	return fmt.Errorf("seed: %s[%d]: %w", section, index, err)
}
