package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

var eat = time.FixedZone("EAT", 3*60*60)

// DefaultMaxHorizon bounds expansion of rules that carry neither a count nor an until date.
const DefaultMaxHorizon = 366 * 24 * time.Hour

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyNone marks a one-off meeting.
	FrequencyNone Frequency = iota
	// FrequencyDaily repeats every calendar day.
	FrequencyDaily
	// FrequencyWeekly repeats every seven days.
	FrequencyWeekly
	// FrequencyBiweekly repeats every fourteen days.
	FrequencyBiweekly
	// FrequencyMonthly repeats on the anchor's day of month, clamped to the last valid day.
	FrequencyMonthly
	// FrequencyCustom repeats every Rule.IntervalDays days.
	FrequencyCustom
)

var frequencyNames = map[Frequency]string{
	FrequencyNone:     "none",
	FrequencyDaily:    "daily",
	FrequencyWeekly:   "weekly",
	FrequencyBiweekly: "biweekly",
	FrequencyMonthly:  "monthly",
	FrequencyCustom:   "custom",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("frequency(%d)", int(f))
}

// ParseFrequency maps the stored or wire name back to a Frequency. The empty
// string is treated as none.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FrequencyNone, nil
	}
	for freq, name := range frequencyNames {
		if name == s {
			return freq, nil
		}
	}
	return FrequencyNone, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidIntervalDays indicates a custom rule without a positive day gap.
	ErrInvalidIntervalDays = errors.New("recurrence: custom rules require a positive interval in days")
	// ErrInvalidCount indicates a negative occurrence count.
	ErrInvalidCount = errors.New("recurrence: count must not be negative")
	// ErrInvalidUntil indicates an until bound earlier than the anchor start.
	ErrInvalidUntil = errors.New("recurrence: until must not precede the anchor")
)

// Rule describes how a meeting repeats. Count and Until are both optional;
// when both are unset the series is unbounded.
type Rule struct {
	Frequency    Frequency
	IntervalDays int
	Count        int
	Until        *time.Time
}

// Bounded reports whether the rule carries a count or until bound.
func (r Rule) Bounded() bool {
	return r.Count > 0 || r.Until != nil
}

// GapDays is the fixed distance between consecutive occurrences, or zero for
// rules without one (none, monthly).
func (r Rule) GapDays() int {
	switch r.Frequency {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyCustom:
		return r.IntervalDays
	default:
		return 0
	}
}

// Validate checks the rule in isolation.
func (r Rule) Validate() error {
	if _, ok := frequencyNames[r.Frequency]; !ok {
		return ErrInvalidFrequency
	}
	if r.Frequency == FrequencyCustom && r.IntervalDays <= 0 {
		return ErrInvalidIntervalDays
	}
	if r.Count < 0 {
		return ErrInvalidCount
	}
	return nil
}

// Series is a meeting's anchor occurrence plus its rule and cancelled
// occurrences. Exclusions may be given by sequence index or by the start
// instant of the cancelled occurrence.
type Series struct {
	ID              string
	Anchor          interval.Interval
	Rule            Rule
	ExcludedIndices []int
	ExcludedStarts  []time.Time
}

// Occurrence is one concrete instance of a series.
type Occurrence struct {
	SeriesID string
	Index    int
	Interval interval.Interval
}

// Expansion is the lazy result of Engine.Expand. Occurrences may be ranged
// over any number of times and yields the same sequence each time.
type Expansion struct {
	Occurrences iter.Seq[Occurrence]
	// Horizon is the effective query horizon after clamping.
	Horizon interval.Interval
	// Truncated is set when an unbounded rule's horizon exceeded the engine maximum.
	Truncated bool
}

// Collect drains the expansion into a slice.
func (x Expansion) Collect() []Occurrence {
	if x.Occurrences == nil {
		return nil
	}
	var out []Occurrence
	for occ := range x.Occurrences {
		out = append(out, occ)
	}
	return out
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location   *time.Location
	maxHorizon time.Duration
}

// NewEngine constructs an Engine that normalizes results to the provided location.
// If loc is nil, East Africa Time (UTC+3) is used. A non-positive maxHorizon
// falls back to DefaultMaxHorizon.
func NewEngine(loc *time.Location, maxHorizon time.Duration) *Engine {
	if loc == nil {
		loc = eat
	}
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizon
	}
	return &Engine{location: loc, maxHorizon: maxHorizon}
}

// Location reports the reference timezone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return eat
	}
	return e.location
}

// MaxHorizon reports the clamp applied to unbounded rules.
func (e *Engine) MaxHorizon() time.Duration {
	if e == nil || e.maxHorizon <= 0 {
		return DefaultMaxHorizon
	}
	return e.maxHorizon
}

// Expand produces the occurrences of series whose intervals intersect horizon.
//
// The engine enforces the following semantics:
//   - Occurrences are yielded in ascending start order, normalized to the engine's timezone.
//   - Generation stops at the first occurrence starting at or after the horizon end.
//   - Excluded indices and start instants are skipped but still consume a sequence index.
//   - Unbounded rules have their horizon clamped to MaxHorizon and are flagged Truncated.
func (e *Engine) Expand(series Series, horizon interval.Interval) (Expansion, error) {
	loc := e.Location()

	if series.Anchor.Empty() {
		return Expansion{}, interval.ErrInvalidInterval
	}
	if err := series.Rule.Validate(); err != nil {
		return Expansion{}, err
	}
	if series.Rule.Until != nil && series.Rule.Until.Before(series.Anchor.Start) {
		return Expansion{}, ErrInvalidUntil
	}

	horizon = horizon.In(loc)
	anchor := interval.Interval{
		Start: series.Anchor.Start.In(loc).Truncate(time.Second),
		End:   series.Anchor.End.In(loc).Truncate(time.Second),
	}
	duration := anchor.Duration()

	result := Expansion{Horizon: horizon}
	if series.Rule.Frequency != FrequencyNone && !series.Rule.Bounded() && horizon.Duration() > e.MaxHorizon() {
		result.Horizon.End = horizon.Start.Add(e.MaxHorizon())
		result.Truncated = true
	}
	horizon = result.Horizon

	skip := newExclusionSet(series, loc)

	if series.Rule.Frequency == FrequencyNone {
		result.Occurrences = func(yield func(Occurrence) bool) {
			if skip.has(0, anchor.Start) || !anchor.Overlaps(horizon) {
				return
			}
			yield(Occurrence{SeriesID: series.ID, Index: 0, Interval: anchor})
		}
		return result, nil
	}

	start, offset, count := fastForward(series.Rule, anchor, duration, horizon)
	if series.Rule.Count > 0 && count <= 0 {
		result.Occurrences = func(func(Occurrence) bool) {}
		return result, nil
	}

	opt, err := ruleOption(series.Rule, start, count, loc)
	if err != nil {
		return Expansion{}, err
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return Expansion{}, fmt.Errorf("recurrence: build rule: %w", err)
	}

	result.Occurrences = func(yield func(Occurrence) bool) {
		next := rule.Iterator()
		index := offset
		for {
			occStart, ok := next()
			if !ok {
				return
			}
			occStart = occStart.In(loc)
			if !occStart.Before(horizon.End) {
				return
			}
			current := index
			index++
			if skip.has(current, occStart) {
				continue
			}
			occ := interval.Interval{Start: occStart, End: occStart.Add(duration)}
			if !occ.Overlaps(horizon) {
				continue
			}
			if !yield(Occurrence{SeriesID: series.ID, Index: current, Interval: occ}) {
				return
			}
		}
	}
	return result, nil
}

// fastForward moves the rule's start close to the horizon for fixed-gap
// rules so that iteration cost depends on the horizon, not the series age.
// It returns the new start, the sequence index of that start and the
// remaining count (unchanged when the rule has no count).
func fastForward(rule Rule, anchor interval.Interval, duration time.Duration, horizon interval.Interval) (time.Time, int, int) {
	gap := rule.GapDays()
	if gap <= 0 {
		return anchor.Start, 0, rule.Count
	}
	// Occurrence k can only intersect the horizon once it ends after horizon.Start.
	lead := horizon.Start.Add(-duration).Sub(anchor.Start)
	if lead <= 0 {
		return anchor.Start, 0, rule.Count
	}
	k := int(lead/(time.Duration(gap)*24*time.Hour)) - 1
	if k <= 0 {
		return anchor.Start, 0, rule.Count
	}
	count := rule.Count
	if count > 0 {
		count -= k
	}
	return anchor.Start.AddDate(0, 0, k*gap), k, count
}

func ruleOption(rule Rule, start time.Time, count int, loc *time.Location) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: start, Count: count}
	if rule.Until != nil {
		opt.Until = rule.Until.In(loc)
	}

	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
		opt.Interval = 1
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
	case FrequencyBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case FrequencyCustom:
		opt.Freq = rrule.DAILY
		opt.Interval = rule.IntervalDays
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 1
		opt.Bymonthday, opt.Bysetpos = monthDayClamp(start.Day())
	default:
		return rrule.ROption{}, ErrInvalidFrequency
	}
	return opt, nil
}

// monthDayClamp selects the anchor's day of month, or the last existing day
// in months that are too short for it.
func monthDayClamp(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

type exclusionSet struct {
	indices map[int]struct{}
	starts  map[int64]struct{}
}

func newExclusionSet(series Series, loc *time.Location) exclusionSet {
	set := exclusionSet{}
	if len(series.ExcludedIndices) > 0 {
		set.indices = make(map[int]struct{}, len(series.ExcludedIndices))
		for _, idx := range series.ExcludedIndices {
			set.indices[idx] = struct{}{}
		}
	}
	if len(series.ExcludedStarts) > 0 {
		set.starts = make(map[int64]struct{}, len(series.ExcludedStarts))
		for _, start := range series.ExcludedStarts {
			set.starts[start.In(loc).Truncate(time.Second).Unix()] = struct{}{}
		}
	}
	return set
}

func (s exclusionSet) has(index int, start time.Time) bool {
	if _, ok := s.indices[index]; ok {
		return true
	}
	_, ok := s.starts[start.Unix()]
	return ok
}
