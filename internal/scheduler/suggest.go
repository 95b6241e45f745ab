package scheduler

import (
	"cmp"
	"slices"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

// ExhaustReason explains why a suggestion search stopped.
type ExhaustReason string

const (
	// ReasonComplete means the requested number of slots was found.
	ReasonComplete ExhaustReason = "complete"
	// ReasonWindowExhausted means the whole search window was scanned and some slots were found.
	ReasonWindowExhausted ExhaustReason = "window_exhausted"
	// ReasonNoCommonFreeTime means the whole search window was scanned without a single slot.
	ReasonNoCommonFreeTime ExhaustReason = "no_common_free_time"
	// ReasonIterationCeiling means the candidate budget ran out before the window was scanned.
	ReasonIterationCeiling ExhaustReason = "iteration_ceiling"
)

// SuggestRequest describes a slot search. Count and SearchWindowDays of zero
// select the policy defaults.
type SuggestRequest struct {
	PreferredDate    interval.Date
	Duration         time.Duration
	ParticipantIDs   []string
	Count            int
	SearchWindowDays int
	// PreferredTime, when set, ranks slots by distance from that time of day
	// instead of from the start of the day.
	PreferredTime *availability.ClockTime
	// NotBefore drops candidates starting earlier than it.
	NotBefore time.Time
	// IgnoreMeetingID excludes a meeting being rescheduled from the conflict filter.
	IgnoreMeetingID string
}

// Suggestions is the ranked outcome of a search. An empty Slots is not an
// error; Reason tells why the search stopped.
type Suggestions struct {
	Slots     []interval.Interval
	Reason    ExhaustReason
	Truncated bool
}

// Plan is a validated and clamped SuggestRequest.
type Plan struct {
	PreferredDate   interval.Date
	Duration        time.Duration
	ParticipantIDs  []string
	Count           int
	Days            int
	PreferredTime   *availability.ClockTime
	NotBefore       time.Time
	IgnoreMeetingID string
}

// Horizon spans every day the plan may search.
func (p Plan) Horizon(loc *time.Location) interval.Interval {
	return interval.Interval{
		Start: p.PreferredDate.Start(loc),
		End:   p.PreferredDate.AddDays(p.Days).Start(loc),
	}
}

// FreeFunc yields a participant's free intervals for a day.
type FreeFunc func(participantID string, day interval.Date) ([]interval.Interval, error)

// FreeCheck reports whether a candidate passes the conflict filter.
type FreeCheck func(candidate interval.Interval) bool

// Suggester searches common free time for conflict-free slots.
type Suggester struct {
	policy Policy
}

// NewSuggester constructs a Suggester with policy defaults filled in.
func NewSuggester(policy Policy) *Suggester {
	return &Suggester{policy: policy.withDefaults()}
}

// Plan validates req and applies the policy defaults and caps.
func (s *Suggester) Plan(req SuggestRequest) (Plan, error) {
	if req.Duration <= 0 {
		return Plan{}, ErrInvalidInterval
	}
	if req.PreferredDate.IsZero() {
		return Plan{}, invalidField("preferred_date", "is required")
	}
	if req.Count < 0 {
		return Plan{}, invalidField("num_suggestions", "must be positive")
	}
	if req.SearchWindowDays < 0 {
		return Plan{}, invalidField("search_window_days", "must be positive")
	}
	participants := normalizeIDs(req.ParticipantIDs)
	if len(participants) == 0 {
		return Plan{}, invalidField("participant_ids", "at least one participant is required")
	}
	if req.PreferredTime != nil && !req.PreferredTime.Valid() {
		return Plan{}, invalidField("preferred_time", "must be between 00:00 and 24:00")
	}

	return Plan{
		PreferredDate:   req.PreferredDate,
		Duration:        req.Duration,
		ParticipantIDs:  participants,
		Count:           clampCount(req.Count, s.policy.DefaultSuggestions, s.policy.MaxSuggestions),
		Days:            clampCount(req.SearchWindowDays, s.policy.DefaultSearchWindowDays, s.policy.MaxSearchWindowDays),
		PreferredTime:   req.PreferredTime,
		NotBefore:       req.NotBefore,
		IgnoreMeetingID: req.IgnoreMeetingID,
	}, nil
}

type candidate struct {
	slot     interval.Interval
	distance time.Duration
	buffer   time.Duration
}

// Suggest walks the plan's days in order. For each day it intersects every
// participant's free time, steps candidate starts at the policy granularity,
// keeps those passing isFree, ranks them and collects until plan.Count slots
// are found. The total number of candidates tried is bounded by
// plan.Days * MaxCandidatesPerDay.
//
// Ranking is per day and days are never interleaved: every slot of an earlier
// day precedes every slot of a later one, even when PreferredTime puts a later
// slot nearer. Within a day slots order by distance from the anchor (start of
// day, or PreferredTime on that day), then by buffer, the distance from the
// slot midpoint to the midpoint of the busiest participant's containing free
// interval, then by earlier start. Without PreferredTime distance already
// orders by start, so buffer never decides.
func (s *Suggester) Suggest(plan Plan, free FreeFunc, isFree FreeCheck) (Suggestions, error) {
	loc := s.policy.Location
	gran := s.policy.Granularity
	budget := plan.Days * s.policy.MaxCandidatesPerDay
	tried := 0

	var out []interval.Interval
	for d := 0; d < plan.Days; d++ {
		day := plan.PreferredDate.AddDays(d)
		if s.policy.SkipWeekends && isWeekend(day.Weekday()) {
			continue
		}

		perParticipant := make(map[string][]interval.Interval, len(plan.ParticipantIDs))
		lists := make([][]interval.Interval, 0, len(plan.ParticipantIDs))
		for _, id := range plan.ParticipantIDs {
			f, err := free(id, day)
			if err != nil {
				return Suggestions{}, err
			}
			perParticipant[id] = f
			lists = append(lists, f)
		}
		common := interval.IntersectAll(lists...)
		if len(common) == 0 {
			continue
		}

		dayStart := day.Start(loc)
		anchor := dayStart
		if plan.PreferredTime != nil {
			anchor = plan.PreferredTime.On(day, loc)
		}
		busiest := busiestFree(plan.ParticipantIDs, perParticipant)

		var found []candidate
		ceiling := false
	scan:
		for _, ci := range common {
			lower := ci.Start
			if lower.Before(plan.NotBefore) {
				lower = plan.NotBefore.In(loc)
			}
			for start := alignUp(lower, dayStart, gran); !start.Add(plan.Duration).After(ci.End); start = start.Add(gran) {
				if tried >= budget {
					ceiling = true
					break scan
				}
				tried++
				slot := interval.Interval{Start: start, End: start.Add(plan.Duration)}
				if !isFree(slot) {
					continue
				}
				found = append(found, candidate{
					slot:     slot,
					distance: absDuration(start.Sub(anchor)),
					buffer:   bufferDistance(slot, busiest),
				})
			}
		}

		slices.SortFunc(found, func(a, b candidate) int {
			return cmp.Or(
				cmp.Compare(a.distance, b.distance),
				cmp.Compare(a.buffer, b.buffer),
				a.slot.Start.Compare(b.slot.Start),
			)
		})
		for _, c := range found {
			if !s.policy.OverlappingSuggestions && overlapsAny(out, c.slot) {
				continue
			}
			out = append(out, c.slot)
			if len(out) == plan.Count {
				return Suggestions{Slots: toUTC(out), Reason: ReasonComplete}, nil
			}
		}
		if ceiling {
			return Suggestions{Slots: toUTC(out), Reason: ReasonIterationCeiling}, nil
		}
	}

	reason := ReasonWindowExhausted
	if len(out) == 0 {
		reason = ReasonNoCommonFreeTime
	}
	return Suggestions{Slots: toUTC(out), Reason: reason}, nil
}

// busiestFree returns the free list of the participant with the least free
// time that day, ties broken by identifier.
func busiestFree(ids []string, free map[string][]interval.Interval) []interval.Interval {
	var (
		best     []interval.Interval
		bestFree time.Duration
		chosen   bool
	)
	for _, id := range ids {
		var total time.Duration
		for _, iv := range free[id] {
			total += iv.Duration()
		}
		if !chosen || total < bestFree {
			best, bestFree, chosen = free[id], total, true
		}
	}
	return best
}

// bufferDistance is how far slot's midpoint lies from the midpoint of the
// free interval containing it.
func bufferDistance(slot interval.Interval, free []interval.Interval) time.Duration {
	mid := slot.Start.Add(slot.Duration() / 2)
	for _, iv := range free {
		if iv.Contains(slot) {
			return absDuration(mid.Sub(iv.Start.Add(iv.Duration() / 2)))
		}
	}
	return 0
}

func alignUp(t, origin time.Time, step time.Duration) time.Time {
	offset := t.Sub(origin)
	if rem := offset % step; rem > 0 {
		return t.Add(step - rem)
	} else if rem < 0 {
		return t.Add(-rem)
	}
	return t
}

func overlapsAny(existing []interval.Interval, slot interval.Interval) bool {
	for _, iv := range existing {
		if iv.Overlaps(slot) {
			return true
		}
	}
	return false
}

func toUTC(in []interval.Interval) []interval.Interval {
	out := make([]interval.Interval, len(in))
	for i, iv := range in {
		out[i] = iv.UTC()
	}
	return out
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
