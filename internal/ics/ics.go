// Package ics converts between participant calendars and iCalendar
// documents: busy time is exported as VEVENTs and VEVENTs are imported as
// blocked time.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

const (
	// ProductID identifies documents produced by Export.
	ProductID = "-//meeting-tool//scheduler//EN"

	uidDomain = "meeting-tool"

	icalUTCLayout      = "20060102T150405Z"
	icalLocalLayout    = "20060102T150405"
	icalDateLayout     = "20060102"
	defaultOccurrences = 1000
)

var (
	// ErrEmptyCalendar is returned when the document has no content.
	ErrEmptyCalendar = errors.New("ics: empty calendar")
	// ErrInvalidHorizon is returned when the import horizon is empty.
	ErrInvalidHorizon = errors.New("ics: import horizon must be non-empty")
)

// ExportOptions controls Export.
type ExportOptions struct {
	ParticipantID string
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// Export writes entries as a VCALENDAR with one opaque VEVENT per entry.
// Meeting occurrences carry the meeting title; blocked time carries its
// reason as CATEGORIES so that Import can restore it.
func Export(w io.Writer, entries []scheduler.BusyEntry, opts ExportOptions) error {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.ParticipantID != "" {
		cal.SetName("Busy time for " + opts.ParticipantID)
	}
	stamp := opts.Stamp.UTC()
	if opts.Stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	for _, entry := range entries {
		event := cal.AddEvent(entryUID(entry))
		event.SetDtStampTime(stamp)
		event.SetStartAt(entry.Interval.Start.UTC())
		event.SetEndAt(entry.Interval.End.UTC())
		event.SetProperty(ical.ComponentPropertyTransp, "OPAQUE")
		switch entry.Kind {
		case scheduler.ConflictKindMeeting:
			summary := entry.Title
			if summary == "" {
				summary = "Busy"
			}
			event.SetSummary(summary)
			event.SetProperty(ical.ComponentPropertyCategories, "MEETING")
		default:
			event.SetSummary("Blocked: " + string(entry.Reason))
			event.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(entry.Reason)))
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("ics: write calendar: %w", err)
	}
	return nil
}

func entryUID(entry scheduler.BusyEntry) string {
	if entry.Kind == scheduler.ConflictKindMeeting {
		return fmt.Sprintf("%s-%d@%s", entry.SourceID, entry.OccurrenceIndex, uidDomain)
	}
	return entry.SourceID + "@" + uidDomain
}

// ImportOptions controls Import.
type ImportOptions struct {
	ParticipantID string
	// Horizon bounds recurring events; only occurrences overlapping it are
	// imported. One-off events are imported regardless.
	Horizon interval.Interval
	// Location resolves floating and all-day values.
	Location *time.Location
	// MaxOccurrences caps the occurrences taken from one recurring event.
	MaxOccurrences int
}

// ImportResult is the outcome of Import.
type ImportResult struct {
	Blocks []availability.Block
	// Skipped counts events that were transparent, cancelled, zero-length or
	// unparseable.
	Skipped int
	// Truncated is set when a recurring event hit MaxOccurrences.
	Truncated bool
}

// Import reads VEVENTs from r and returns them as blocked time for the
// participant. Transparent and cancelled events do not block. Recurring
// events are expanded with their RRULE and EXDATEs within the horizon.
func Import(r io.Reader, opts ImportOptions) (ImportResult, error) {
	if opts.Horizon.Empty() {
		return ImportResult{}, ErrInvalidHorizon
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = defaultOccurrences
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("ics: read calendar: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ImportResult{}, ErrEmptyCalendar
	}
	cal, err := ical.ParseCalendar(strings.NewReader(string(body)))
	if err != nil {
		return ImportResult{}, fmt.Errorf("ics: parse calendar: %w", err)
	}

	var out ImportResult
	for _, ve := range cal.Events() {
		ev, ok := parseEvent(ve, loc)
		if !ok {
			out.Skipped++
			continue
		}
		spans, truncated, err := ev.expand(opts.Horizon, limit)
		if err != nil {
			out.Skipped++
			continue
		}
		out.Truncated = out.Truncated || truncated
		for _, span := range spans {
			out.Blocks = append(out.Blocks, availability.Block{
				ParticipantID: opts.ParticipantID,
				Interval:      span.UTC(),
				Reason:        ev.reason,
				AllDay:        ev.allDay,
			})
		}
	}
	return out, nil
}

type event struct {
	start, end time.Time
	allDay     bool
	reason     availability.Reason
	rrule      string
	exdates    []time.Time
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (event, bool) {
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return event{}, false
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return event{}, false
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return event{}, false
	}
	start, allDay, err := propertyTime(startProp, loc)
	if err != nil {
		return event{}, false
	}

	ev := event{start: start, allDay: allDay, reason: availability.ReasonBusy}
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if ev.end, _, err = propertyTime(endProp, loc); err != nil {
			return event{}, false
		}
	} else if allDay {
		ev.end = start.AddDate(0, 0, 1)
	}
	if !ev.end.After(ev.start) {
		return event{}, false
	}

	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		for _, category := range strings.Split(p.Value, ",") {
			if reason, err := availability.ParseReason(category); err == nil && strings.TrimSpace(category) != "" {
				ev.reason = reason
				break
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = strings.TrimSpace(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseValue(part, paramValue(p, "TZID"), loc); err == nil {
				ev.exdates = append(ev.exdates, t)
			}
		}
	}
	return ev, true
}

// expand returns the event's spans. One-off events yield themselves;
// recurring events yield the occurrences overlapping horizon.
func (ev event) expand(horizon interval.Interval, limit int) ([]interval.Interval, bool, error) {
	duration := ev.end.Sub(ev.start)
	if ev.rrule == "" {
		return []interval.Interval{{Start: ev.start, End: ev.end}}, false, nil
	}

	rule, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, false, fmt.Errorf("ics: parse rrule %q: %w", ev.rrule, err)
	}
	rule.DTStart(ev.start)
	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	from := horizon.Start.Add(-duration).In(ev.start.Location())
	to := horizon.End.In(ev.start.Location())

	var (
		out       []interval.Interval
		truncated bool
	)
	for _, start := range set.Between(from, to, true) {
		span := interval.Interval{Start: start, End: start.Add(duration)}
		if !span.Overlaps(horizon) {
			continue
		}
		if len(out) == limit {
			truncated = true
			break
		}
		out = append(out, span)
	}
	return out, truncated, nil
}

// propertyTime resolves a DTSTART or DTEND value. Date values are all-day
// and resolve to midnight in loc.
func propertyTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	value := strings.TrimSpace(p.Value)
	if strings.EqualFold(paramValue(p, "VALUE"), "DATE") || !strings.Contains(value, "T") {
		t, err := time.ParseInLocation(icalDateLayout, value, loc)
		return t, true, err
	}
	t, err := parseValue(value, paramValue(p, "TZID"), loc)
	return t, false, err
}

func parseValue(value, tzid string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse(icalUTCLayout, value)
	case !strings.Contains(value, "T"):
		return time.ParseInLocation(icalDateLayout, value, loc)
	}
	if tzid != "" {
		if zone, err := time.LoadLocation(tzid); err == nil {
			loc = zone
		}
	}
	return time.ParseInLocation(icalLocalLayout, value, loc)
}

func paramValue(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if values := p.ICalParameters[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}
