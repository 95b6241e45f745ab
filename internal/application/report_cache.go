package application

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// reportCache stores recently computed advisory conflict reports so repeated
// checks of the same candidate skip the engine while calendars are unchanged.
// Every write through the services invalidates it.
type reportCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]reportCacheEntry
}

type reportCacheEntry struct {
	report    scheduler.ConflictReport
	expiresAt time.Time
}

func newReportCache(ttl time.Duration, maxEntries int, now func() time.Time) *reportCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &reportCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]reportCacheEntry),
	}
}

func (c *reportCache) Get(key string) (scheduler.ConflictReport, bool) {
	if c == nil {
		return scheduler.ConflictReport{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return scheduler.ConflictReport{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return scheduler.ConflictReport{}, false
	}
	return cloneReport(entry.report), true
}

func (c *reportCache) Store(key string, report scheduler.ConflictReport) {
	if c == nil {
		return
	}
	cloned := cloneReport(report)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = reportCacheEntry{report: cloned, expiresAt: expiry}
}

// Invalidate drops every cached report.
func (c *reportCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]reportCacheEntry)
	c.mu.Unlock()
}

func (c *reportCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *reportCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *reportCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneReport(report scheduler.ConflictReport) scheduler.ConflictReport {
	report.Conflicts = slices.Clone(report.Conflicts)
	return report
}

// buildReportCacheKey identifies a check by candidate, sorted participants
// and ignored meeting.
func buildReportCacheKey(candidateStart, candidateEnd time.Time, participants []string, ignoreMeetingID string) string {
	sorted := slices.Clone(participants)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	builder := strings.Builder{}
	builder.WriteString(candidateStart.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(candidateEnd.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(strings.Join(sorted, ","))
	builder.WriteString("|")
	builder.WriteString(ignoreMeetingID)
	return builder.String()
}
