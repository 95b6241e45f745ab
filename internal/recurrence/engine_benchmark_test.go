package recurrence

import (
	"testing"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

func BenchmarkEngineExpandDistantHorizon(b *testing.B) {
	engine := NewEngine(nil, 0)
	start := time.Date(2020, 5, 6, 9, 0, 0, 0, eat)
	series := Series{
		ID:     "meeting-1",
		Anchor: interval.Interval{Start: start, End: start.Add(90 * time.Minute)},
		Rule:   Rule{Frequency: FrequencyDaily},
	}
	from := start.AddDate(4, 0, 0)
	horizon := interval.Interval{Start: from, End: from.AddDate(0, 0, 7)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exp, err := engine.Expand(series, horizon)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(exp.Collect()) == 0 {
			b.Fatal("expected occurrences to be generated")
		}
	}
}
