package scheduler

import (
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
)

var eat = time.FixedZone("EAT", 3*60*60)

// Policy holds the engine-wide defaults. It is passed by value into every
// engine and never mutated after construction.
type Policy struct {
	// Location is the reference timezone all arithmetic is normalized to.
	Location *time.Location
	// StrictAvailability makes a day without windows unavailable instead of fully available.
	StrictAvailability bool
	// StrictParticipants rejects requests naming participants without any data.
	StrictParticipants bool
	// Granularity is the step between candidate start times.
	Granularity time.Duration

	DefaultSuggestions      int
	MaxSuggestions          int
	DefaultSearchWindowDays int
	MaxSearchWindowDays     int

	// MaxRecurrenceHorizon clamps expansion of series with neither count nor until.
	MaxRecurrenceHorizon time.Duration
	// MaxCandidatesPerDay times the search window bounds the candidates a search may try.
	MaxCandidatesPerDay int
	// OverlappingSuggestions allows suggested slots to overlap one another.
	OverlappingSuggestions bool
	// SkipWeekends excludes Saturdays and Sundays from suggestion searches.
	SkipWeekends bool
	// NextAvailableDays bounds NextAvailable searches.
	NextAvailableDays int
}

// DefaultPolicy returns the stock policy: EAT, permissive availability and
// participants, 15 minute granularity, 5 of at most 20 suggestions over 7 of
// at most 31 days.
func DefaultPolicy() Policy {
	return Policy{
		Location:                eat,
		Granularity:             15 * time.Minute,
		DefaultSuggestions:      5,
		MaxSuggestions:          20,
		DefaultSearchWindowDays: 7,
		MaxSearchWindowDays:     31,
		MaxRecurrenceHorizon:    recurrence.DefaultMaxHorizon,
		MaxCandidatesPerDay:     96,
		NextAvailableDays:       14,
	}
}

// withDefaults fills unset fields from DefaultPolicy and keeps defaults
// within their caps.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Location == nil {
		p.Location = def.Location
	}
	if p.Granularity <= 0 {
		p.Granularity = def.Granularity
	}
	if p.MaxSuggestions <= 0 {
		p.MaxSuggestions = def.MaxSuggestions
	}
	if p.DefaultSuggestions <= 0 {
		p.DefaultSuggestions = def.DefaultSuggestions
	}
	if p.DefaultSuggestions > p.MaxSuggestions {
		p.DefaultSuggestions = p.MaxSuggestions
	}
	if p.MaxSearchWindowDays <= 0 {
		p.MaxSearchWindowDays = def.MaxSearchWindowDays
	}
	if p.DefaultSearchWindowDays <= 0 {
		p.DefaultSearchWindowDays = def.DefaultSearchWindowDays
	}
	if p.DefaultSearchWindowDays > p.MaxSearchWindowDays {
		p.DefaultSearchWindowDays = p.MaxSearchWindowDays
	}
	if p.MaxRecurrenceHorizon <= 0 {
		p.MaxRecurrenceHorizon = def.MaxRecurrenceHorizon
	}
	if p.MaxCandidatesPerDay <= 0 {
		p.MaxCandidatesPerDay = def.MaxCandidatesPerDay
	}
	if p.NextAvailableDays <= 0 {
		p.NextAvailableDays = def.NextAvailableDays
	}
	return p
}

// clampCount resolves a requested count: zero means the default, values
// above max are clamped. Negative values are rejected by the caller.
func clampCount(requested, def, max int) int {
	if requested == 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}
