package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
)

type participantService interface {
	SaveParticipant(ctx context.Context, input application.ParticipantInput) (application.Participant, error)
	GetParticipant(ctx context.Context, id string) (application.Participant, error)
	ListParticipants(ctx context.Context) ([]application.Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
}

// ParticipantHandler serves the participant directory.
type ParticipantHandler struct {
	service   participantService
	responder responder
}

func NewParticipantHandler(service participantService, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{service: service, responder: newResponder(logger)}
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participants, err := h.service.ListParticipants(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]participantDTO, 0, len(participants))
	for _, p := range participants {
		out = append(out, toParticipantDTO(p))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listParticipantsResponse{Participants: out})
}

func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}
	participant, err := h.service.GetParticipant(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toParticipantDTO(participant))
}

// Update handles PUT /participants/{id}; unknown identifiers are created.
func (h *ParticipantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}
	if err := h.service.DeleteParticipant(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ParticipantHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req participantRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	if id == "" {
		id = req.ID
	}

	participant, err := h.service.SaveParticipant(r.Context(), application.ParticipantInput{
		ID:          strings.TrimSpace(id),
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, status, toParticipantDTO(participant))
}

type participantRequest struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type participantDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type listParticipantsResponse struct {
	Participants []participantDTO `json:"participants"`
}

func toParticipantDTO(p application.Participant) participantDTO {
	return participantDTO{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}
