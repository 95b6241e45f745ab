// Package claim provides the exclusive, short-lived claims that serialize
// authoritative bookings per participant and day.
package claim

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrEmptyKeys indicates an acquire call without keys.
var ErrEmptyKeys = errors.New("claim: no keys to acquire")

// Memory is an in-process claimer. Keys are acquired all at once or not at
// all, so waiters never hold a partial set.
type Memory struct {
	mu      sync.Mutex
	held    map[string]uint64
	next    uint64
	changed chan struct{}
}

// NewMemory constructs an empty Memory claimer.
func NewMemory() *Memory {
	return &Memory{
		held:    make(map[string]uint64),
		changed: make(chan struct{}),
	}
}

// Acquire blocks until every key is free, then holds them until release is
// called. It returns ctx.Err() if ctx ends first.
func (m *Memory) Acquire(ctx context.Context, keys []string) (func(context.Context) error, error) {
	keys = uniqueSorted(keys)
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}

	for {
		m.mu.Lock()
		if m.freeLocked(keys) {
			m.next++
			token := m.next
			for _, k := range keys {
				m.held[k] = token
			}
			m.mu.Unlock()
			return m.releaser(keys, token), nil
		}
		wait := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Held reports how many keys are currently claimed.
func (m *Memory) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

func (m *Memory) freeLocked(keys []string) bool {
	for _, k := range keys {
		if _, ok := m.held[k]; ok {
			return false
		}
	}
	return true
}

func (m *Memory) releaser(keys []string, token uint64) func(context.Context) error {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for _, k := range keys {
				if m.held[k] == token {
					delete(m.held, k)
				}
			}
			close(m.changed)
			m.changed = make(chan struct{})
		})
		return nil
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
