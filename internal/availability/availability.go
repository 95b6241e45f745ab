// Package availability turns declared availability windows and blocked time
// into per-day free intervals.
package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

var eat = time.FixedZone("EAT", 3*60*60)

// MinutesPerDay is the exclusive upper bound of a ClockTime, written "24:00".
const MinutesPerDay = 24 * 60

var (
	// ErrInvalidClock indicates a time of day outside 00:00..24:00.
	ErrInvalidClock = errors.New("availability: invalid time of day")
	// ErrInvalidWindow indicates a window whose end is not after its start.
	ErrInvalidWindow = errors.New("availability: window end must be after start")
	// ErrInvalidWeekday indicates a weekday outside 0..6.
	ErrInvalidWeekday = errors.New("availability: weekday must be between 0 and 6")
	// ErrInvalidReason indicates an unknown blocked time reason.
	ErrInvalidReason = errors.New("availability: unknown blocked time reason")
)

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

// Clock builds a ClockTime from hours and minutes.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses HH:MM, accepting 24:00 as end of day.
func ParseClock(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || hour < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	c := Clock(hour, minute)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return c, nil
}

// Valid reports whether c lies within 00:00..24:00.
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On resolves c on day in loc. 24:00 resolves to the next midnight.
func (c ClockTime) On(day interval.Date, loc *time.Location) time.Time {
	return time.Date(day.Year, day.Month, day.Day, int(c)/60, int(c)%60, 0, 0, loc)
}

// Window is a span of declared reachability. A window with a Date applies
// to that day only and replaces the weekday windows for it.
type Window struct {
	ID             string
	ParticipantID  string
	Weekday        time.Weekday
	Date           interval.Date
	Start          ClockTime
	End            ClockTime
	EffectiveFrom  interval.Date
	EffectiveUntil interval.Date
	Disabled       bool
}

// Validate checks a single window entry.
func (w Window) Validate() error {
	if !w.Start.Valid() || !w.End.Valid() {
		return ErrInvalidClock
	}
	if w.End <= w.Start {
		return ErrInvalidWindow
	}
	if w.Date.IsZero() && (w.Weekday < time.Sunday || w.Weekday > time.Saturday) {
		return ErrInvalidWeekday
	}
	return nil
}

// Override reports whether the window targets a specific date.
func (w Window) Override() bool {
	return !w.Date.IsZero()
}

func (w Window) effectiveOn(day interval.Date) bool {
	if w.Disabled {
		return false
	}
	if !w.EffectiveFrom.IsZero() && day.Before(w.EffectiveFrom) {
		return false
	}
	if !w.EffectiveUntil.IsZero() && day.After(w.EffectiveUntil) {
		return false
	}
	return true
}

// Reason classifies blocked time.
type Reason string

const (
	ReasonVacation Reason = "vacation"
	ReasonBusy     Reason = "busy"
	ReasonPersonal Reason = "personal"
	ReasonHoliday  Reason = "holiday"
	ReasonOther    Reason = "other"
)

// ParseReason accepts the known reasons; empty means other.
func ParseReason(s string) (Reason, error) {
	switch r := Reason(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ReasonOther, nil
	case ReasonVacation, ReasonBusy, ReasonPersonal, ReasonHoliday, ReasonOther:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
	}
}

// Block is a span during which the participant is unavailable regardless of
// declared windows.
type Block struct {
	ID            string
	ParticipantID string
	Interval      interval.Interval
	Reason        Reason
	AllDay        bool
}

// Span returns the blocked range. All-day blocks cover every calendar day
// touched by the interval in loc.
func (b Block) Span(loc *time.Location) interval.Interval {
	if !b.AllDay {
		return b.Interval
	}
	first := interval.DateOf(b.Interval.Start, loc)
	lastInstant := b.Interval.End
	if b.Interval.End.After(b.Interval.Start) {
		lastInstant = b.Interval.End.Add(-time.Nanosecond)
	}
	last := interval.DateOf(lastInstant, loc)
	return interval.Interval{Start: first.Start(loc), End: last.AddDays(1).Start(loc)}
}

// Resolver computes free intervals from windows and blocks. In strict mode
// a day without applicable windows has no free time; otherwise it is fully
// available.
type Resolver struct {
	location *time.Location
	strict   bool
}

// NewResolver constructs a Resolver in loc. If loc is nil, EAT is used.
func NewResolver(loc *time.Location, strict bool) *Resolver {
	if loc == nil {
		loc = eat
	}
	return &Resolver{location: loc, strict: strict}
}

// Strict reports whether explicit windows are required.
func (r *Resolver) Strict() bool {
	return r != nil && r.strict
}

// Location reports the reference timezone.
func (r *Resolver) Location() *time.Location {
	if r == nil || r.location == nil {
		return eat
	}
	return r.location
}

// Applicable selects the windows that govern day. Date overrides win over
// weekday entries.
func (r *Resolver) Applicable(day interval.Date, windows []Window) []Window {
	var overrides, weekly []Window
	weekday := day.Weekday()
	for _, w := range windows {
		if !w.effectiveOn(day) {
			continue
		}
		switch {
		case w.Override():
			if w.Date == day {
				overrides = append(overrides, w)
			}
		case w.Weekday == weekday:
			weekly = append(weekly, w)
		}
	}
	if len(overrides) > 0 {
		return overrides
	}
	return weekly
}

// Windows unions the applicable windows for day into ascending,
// non-touching intervals. The second return is false when no window applies.
func (r *Resolver) Windows(day interval.Date, windows []Window) ([]interval.Interval, bool) {
	loc := r.Location()
	applicable := r.Applicable(day, windows)
	if len(applicable) == 0 {
		return nil, false
	}
	spans := make([]interval.Interval, 0, len(applicable))
	for _, w := range applicable {
		if w.Validate() != nil {
			continue
		}
		spans = append(spans, interval.Interval{Start: w.Start.On(day, loc), End: w.End.On(day, loc)})
	}
	return interval.Merge(spans), true
}

// FreeIntervals returns the participant's free time on day: the union of
// applicable windows minus every block. The result is ascending and no two
// intervals touch.
func (r *Resolver) FreeIntervals(day interval.Date, windows []Window, blocks []Block) []interval.Interval {
	loc := r.Location()
	dayspan := day.Span(loc)

	base, ok := r.Windows(day, windows)
	if !ok {
		if r.Strict() {
			return nil
		}
		base = []interval.Interval{dayspan}
	}

	cuts := make([]interval.Interval, 0, len(blocks))
	for _, b := range blocks {
		if span, hit := b.Span(loc).Intersect(dayspan); hit {
			cuts = append(cuts, span)
		}
	}
	return interval.Subtract(base, cuts)
}

// BusinessHours builds the standard Monday to Friday window set.
func BusinessHours(participantID string, start, end ClockTime) []Window {
	out := make([]Window, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		out = append(out, Window{
			ParticipantID: participantID,
			Weekday:       day,
			Start:         start,
			End:           end,
		})
	}
	return out
}

// DefaultBusinessHours is 08:00 to 18:00.
func DefaultBusinessHours(participantID string) []Window {
	return BusinessHours(participantID, Clock(8, 0), Clock(18, 0))
}
