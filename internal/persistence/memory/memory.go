// Package memory provides a map-backed persistence.Store for tests and
// single-process deployments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

var _ persistence.Store = (*Storage)(nil)

// Storage keeps every record in memory behind a single RWMutex. Records are
// cloned on the way in and out.
type Storage struct {
	mu           sync.RWMutex
	participants map[string]persistence.Participant
	meetings     map[string]persistence.Meeting
	windows      map[string]persistence.AvailabilityWindow
	blocks       map[string]persistence.BlockedTime
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		participants: make(map[string]persistence.Participant),
		meetings:     make(map[string]persistence.Meeting),
		windows:      make(map[string]persistence.AvailabilityWindow),
		blocks:       make(map[string]persistence.BlockedTime),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- ParticipantRepository implementation ---

// UpsertParticipant inserts or replaces a participant, keeping the original
// CreatedAt on replace.
func (s *Storage) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.participants[participant.ID]; ok {
		participant.CreatedAt = existing.CreatedAt
	}
	s.participants[participant.ID] = participant
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return p, nil
}

// ListParticipants returns all participants ordered by ID.
func (s *Storage) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.SortedFunc(maps.Values(s.participants), func(a, b persistence.Participant) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

// DeleteParticipant removes a participant.
func (s *Storage) DeleteParticipant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

// MissingParticipantIDs returns ids with no stored participant.
func (s *Storage) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := s.participants[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// --- MeetingRepository implementation ---

// CreateMeeting stores a new meeting.
func (s *Storage) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if err := validateMeeting(meeting); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meeting.ID]; ok {
		return fmt.Errorf("%w: meeting %s", persistence.ErrDuplicate, meeting.ID)
	}
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

// UpdateMeeting replaces an existing meeting. The organizer and CreatedAt are
// immutable.
func (s *Storage) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if err := validateMeeting(meeting); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.meetings[meeting.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	meeting.OrganizerID = existing.OrganizerID
	meeting.CreatedAt = existing.CreatedAt
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

// GetMeeting retrieves a meeting by ID.
func (s *Storage) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return cloneMeeting(m), nil
}

// ListMeetings returns the meetings matching filter ordered by start then ID.
func (s *Storage) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Meeting
	for _, m := range s.meetings {
		if filter.Matches(m) {
			out = append(out, cloneMeeting(m))
		}
	}
	slices.SortFunc(out, func(a, b persistence.Meeting) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// DeleteMeeting removes a meeting.
func (s *Storage) DeleteMeeting(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

// --- AvailabilityRepository implementation ---

// CreateWindow stores a new availability window.
func (s *Storage) CreateWindow(ctx context.Context, window persistence.AvailabilityWindow) error {
	if err := validateWindow(window); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[window.ID]; ok {
		return fmt.Errorf("%w: window %s", persistence.ErrDuplicate, window.ID)
	}
	s.windows[window.ID] = window
	return nil
}

// GetWindow retrieves a window by ID.
func (s *Storage) GetWindow(ctx context.Context, id string) (persistence.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return persistence.AvailabilityWindow{}, persistence.ErrNotFound
	}
	return w, nil
}

// ListWindows returns the participant's windows ordered by weekday, date,
// start minute and ID.
func (s *Storage) ListWindows(ctx context.Context, participantID string) ([]persistence.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.AvailabilityWindow
	for _, w := range s.windows {
		if w.ParticipantID == participantID {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, compareWindows)
	return out, nil
}

// DeleteWindow removes a window.
func (s *Storage) DeleteWindow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.windows, id)
	return nil
}

// ReplaceWeeklyWindows swaps the participant's weekly windows for windows.
func (s *Storage) ReplaceWeeklyWindows(ctx context.Context, participantID string, windows []persistence.AvailabilityWindow) error {
	for _, w := range windows {
		if err := validateWindow(w); err != nil {
			return err
		}
		if w.ParticipantID != participantID || w.Date != "" {
			return fmt.Errorf("%w: window %s is not a weekly window of %s", persistence.ErrConstraintViolation, w.ID, participantID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range windows {
		if existing, ok := s.windows[w.ID]; ok && (existing.ParticipantID != participantID || existing.Date != "") {
			return fmt.Errorf("%w: window %s", persistence.ErrDuplicate, w.ID)
		}
	}
	for id, w := range s.windows {
		if w.ParticipantID == participantID && w.Date == "" {
			delete(s.windows, id)
		}
	}
	for _, w := range windows {
		s.windows[w.ID] = w
	}
	return nil
}

// --- BlockedTimeRepository implementation ---

// CreateBlockedTime stores a new block.
func (s *Storage) CreateBlockedTime(ctx context.Context, block persistence.BlockedTime) error {
	if block.ID == "" || block.ParticipantID == "" || !block.End.After(block.Start) {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[block.ID]; ok {
		return fmt.Errorf("%w: blocked time %s", persistence.ErrDuplicate, block.ID)
	}
	s.blocks[block.ID] = block
	return nil
}

// GetBlockedTime retrieves a block by ID.
func (s *Storage) GetBlockedTime(ctx context.Context, id string) (persistence.BlockedTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id]
	if !ok {
		return persistence.BlockedTime{}, persistence.ErrNotFound
	}
	return b, nil
}

// ListBlockedTime returns the participant's blocks overlapping [start, end)
// ordered by start then ID.
func (s *Storage) ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]persistence.BlockedTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.BlockedTime
	for _, b := range s.blocks {
		if b.ParticipantID == participantID && b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b persistence.BlockedTime) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// DeleteBlockedTime removes a block.
func (s *Storage) DeleteBlockedTime(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.blocks, id)
	return nil
}

func validateMeeting(m persistence.Meeting) error {
	if m.ID == "" || m.OrganizerID == "" || !m.End.After(m.Start) || m.IntervalDays < 0 || m.Count < 0 {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func validateWindow(w persistence.AvailabilityWindow) error {
	if w.ID == "" || w.ParticipantID == "" || w.Weekday < 0 || w.Weekday > 6 ||
		w.StartMinute < 0 || w.EndMinute > 24*60 || w.EndMinute <= w.StartMinute {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func compareWindows(a, b persistence.AvailabilityWindow) int {
	return cmp.Or(
		cmp.Compare(a.Weekday, b.Weekday),
		cmp.Compare(a.Date, b.Date),
		cmp.Compare(a.StartMinute, b.StartMinute),
		cmp.Compare(a.ID, b.ID),
	)
}

func cloneMeeting(m persistence.Meeting) persistence.Meeting {
	return persistence.NormalizeMeeting(m)
}
