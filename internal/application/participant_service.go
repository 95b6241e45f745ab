package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
)

const participantServiceName = "ParticipantService"

// ParticipantService orchestrates validation and persistence for the
// participant directory consulted in strict participant mode.
type ParticipantService struct {
	participants persistence.ParticipantRepository
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewParticipantService wires dependencies for the participant service.
func NewParticipantService(participants persistence.ParticipantRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ParticipantService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ParticipantService{participants: participants, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// SaveParticipant validates input and creates or updates a participant. An
// empty ID is assigned; CreatedAt is kept for existing participants.
func (s *ParticipantService) SaveParticipant(ctx context.Context, input ParticipantInput) (Participant, error) {
	if s == nil || s.participants == nil {
		return Participant{}, fmt.Errorf("ParticipantService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, participantServiceName, "SaveParticipant", "participant_id", input.ID)

	normalized := normalizeParticipantInput(input)
	vErr := validateParticipantInput(normalized)
	if vErr.HasErrors() {
		logFailure(logger, "participant validation failed", vErr)
		return Participant{}, vErr
	}

	now := s.now()
	participant := persistence.Participant{
		ID:          normalized.ID,
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if participant.ID == "" {
		participant.ID = s.idGenerator()
	} else if existing, err := s.participants.GetParticipant(ctx, participant.ID); err == nil {
		participant.CreatedAt = existing.CreatedAt
	} else if mapped := mapRepoError(err); mapped != ErrNotFound {
		logFailure(logger, "failed to load participant", mapped)
		return Participant{}, mapped
	}

	if err := s.participants.UpsertParticipant(ctx, participant); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to store participant", err)
		return Participant{}, err
	}

	logger.Info("participant saved", "participant_id", participant.ID)
	return participantFromRow(participant), nil
}

// GetParticipant returns a single participant.
func (s *ParticipantService) GetParticipant(ctx context.Context, id string) (Participant, error) {
	if s == nil || s.participants == nil {
		return Participant{}, fmt.Errorf("ParticipantService is not configured")
	}
	row, err := s.participants.GetParticipant(ctx, strings.TrimSpace(id))
	if err != nil {
		return Participant{}, mapRepoError(err)
	}
	return participantFromRow(row), nil
}

// ListParticipants returns every participant ordered by email.
func (s *ParticipantService) ListParticipants(ctx context.Context) ([]Participant, error) {
	if s == nil || s.participants == nil {
		return nil, fmt.Errorf("ParticipantService is not configured")
	}
	rows, err := s.participants.ListParticipants(ctx)
	if err != nil {
		err = mapRepoError(err)
		logFailure(serviceLogger(ctx, s.logger, participantServiceName, "ListParticipants"), "failed to list participants", err)
		return nil, err
	}

	out := make([]Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, participantFromRow(row))
	}
	slices.SortStableFunc(out, func(a, b Participant) int {
		if c := strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteParticipant removes a participant from the directory. Meetings and
// availability that mention the participant are left alone.
func (s *ParticipantService) DeleteParticipant(ctx context.Context, id string) error {
	if s == nil || s.participants == nil {
		return fmt.Errorf("ParticipantService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, participantServiceName, "DeleteParticipant", "participant_id", id)
	if err := s.participants.DeleteParticipant(ctx, strings.TrimSpace(id)); err != nil {
		err = mapRepoError(err)
		logFailure(logger, "failed to delete participant", err)
		return err
	}
	logger.Info("participant deleted")
	return nil
}

func participantFromRow(row persistence.Participant) Participant {
	return Participant{
		ID:          row.ID,
		Email:       row.Email,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func normalizeParticipantInput(input ParticipantInput) ParticipantInput {
	return ParticipantInput{
		ID:          strings.TrimSpace(input.ID),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
	}
}

func validateParticipantInput(input ParticipantInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	return vErr
}
