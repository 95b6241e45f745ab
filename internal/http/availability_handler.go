package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/ics"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

type availabilityService interface {
	SetBusinessHours(ctx context.Context, input application.BusinessHoursInput) ([]application.Window, error)
	AddWindow(ctx context.Context, input application.WindowInput) (application.Window, error)
	ListWindows(ctx context.Context, participantID string) ([]application.Window, error)
	DeleteWindow(ctx context.Context, windowID string) error
	AddBlockedTime(ctx context.Context, input application.BlockedTimeInput) (application.Block, error)
	ImportBlockedTime(ctx context.Context, participantID string, blocks []application.Block) ([]application.Block, error)
	ListBlockedTime(ctx context.Context, participantID string, start, end time.Time) ([]application.Block, error)
	DeleteBlockedTime(ctx context.Context, blockID string) error
}

// AvailabilityOptions tunes listing ranges and calendar imports.
type AvailabilityOptions struct {
	Location *time.Location
	Now      func() time.Time
	// ListDays is the blocked time listing range when none is given.
	ListDays int
	// ImportHorizon bounds recurring events read from uploaded calendars.
	ImportHorizon time.Duration
	// MaxImportOccurrences caps the occurrences taken from one recurring event.
	MaxImportOccurrences int
}

// AvailabilityHandler serves windows, business hours and blocked time.
type AvailabilityHandler struct {
	service   availabilityService
	opts      AvailabilityOptions
	logger    *slog.Logger
	responder responder
}

func NewAvailabilityHandler(service availabilityService, opts AvailabilityOptions, logger *slog.Logger) *AvailabilityHandler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ListDays <= 0 {
		opts.ListDays = 31
	}
	if opts.ImportHorizon <= 0 {
		opts.ImportHorizon = 90 * 24 * time.Hour
	}
	return &AvailabilityHandler{service: service, opts: opts, logger: logger, responder: newResponder(logger)}
}

// SetBusinessHours handles PUT /participants/{id}/business-hours.
func (h *AvailabilityHandler) SetBusinessHours(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	var req businessHoursRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}

	windows, err := h.service.SetBusinessHours(r.Context(), application.BusinessHoursInput{
		ParticipantID: participantID,
		Start:         req.Start,
		End:           req.End,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listWindowsResponse{Windows: toWindowDTOs(windows)})
}

// ListWindows handles GET /participants/{id}/windows.
func (h *AvailabilityHandler) ListWindows(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	windows, err := h.service.ListWindows(r.Context(), participantID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listWindowsResponse{Windows: toWindowDTOs(windows)})
}

// AddWindow handles POST /participants/{id}/windows.
func (h *AvailabilityHandler) AddWindow(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	var req windowRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}

	window, err := h.service.AddWindow(r.Context(), application.WindowInput{
		ParticipantID:  participantID,
		Weekday:        req.Weekday,
		Date:           req.Date,
		Start:          req.Start,
		End:            req.End,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		Disabled:       req.Disabled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toWindowDTO(window))
}

// DeleteWindow handles DELETE /windows/{id}.
func (h *AvailabilityHandler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteWindow(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListBlockedTime handles GET /participants/{id}/blocked-time?start=&end=.
// Without bounds the next ListDays days from today are listed.
func (h *AvailabilityHandler) ListBlockedTime(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	fields := fieldErrors{}
	start := fields.time("start", r.URL.Query().Get("start"))
	end := fields.time("end", r.URL.Query().Get("end"))
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}
	if start.IsZero() {
		start = interval.DateOf(h.opts.Now(), h.opts.Location).Start(h.opts.Location)
	}
	if end.IsZero() {
		end = interval.DateOf(start, h.opts.Location).AddDays(h.opts.ListDays).Start(h.opts.Location)
	}

	blocks, err := h.service.ListBlockedTime(r.Context(), participantID, start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBlockedTimeResponse{BlockedTime: toBlockDTOs(blocks)})
}

// AddBlockedTime handles POST /participants/{id}/blocked-time.
func (h *AvailabilityHandler) AddBlockedTime(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	var req blockedTimeRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	fields := fieldErrors{}
	start := fields.time("start", req.Start)
	end := fields.time("end", req.End)
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	block, err := h.service.AddBlockedTime(r.Context(), application.BlockedTimeInput{
		ParticipantID: participantID,
		Start:         start,
		End:           end,
		Reason:        req.Reason,
		AllDay:        req.AllDay,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBlockDTO(block))
}

// ImportCalendar handles POST /participants/{id}/blocked-time/import. The
// body is an iCalendar document; its opaque events become blocked time.
// Recurring events are expanded between the start and end query
// parameters, defaulting to today plus ImportHorizon.
func (h *AvailabilityHandler) ImportCalendar(w http.ResponseWriter, r *http.Request) {
	participantID, ok := h.participantID(w, r)
	if !ok {
		return
	}
	fields := fieldErrors{}
	start := fields.time("start", r.URL.Query().Get("start"))
	end := fields.time("end", r.URL.Query().Get("end"))
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}
	if start.IsZero() {
		start = interval.DateOf(h.opts.Now(), h.opts.Location).Start(h.opts.Location)
	}
	if end.IsZero() {
		end = start.Add(h.opts.ImportHorizon)
	}
	if !end.After(start) {
		h.responder.writeFieldErrors(r.Context(), w, fieldErrors{"time": "end must be after start"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4*maxRequestBody))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errEmptyCalendarUpload)
		return
	}

	parsed, err := ics.Import(strings.NewReader(string(body)), ics.ImportOptions{
		ParticipantID:  participantID,
		Horizon:        interval.Interval{Start: start, End: end},
		Location:       h.opts.Location,
		MaxOccurrences: h.opts.MaxImportOccurrences,
	})
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	stored, err := h.service.ImportBlockedTime(r.Context(), participantID, parsed.Blocks)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "availability", "ImportCalendar", "participant_id", participantID).
		InfoContext(r.Context(), "calendar imported", "blocks", len(stored), "skipped", parsed.Skipped, "truncated", parsed.Truncated)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, importResponse{
		BlockedTime: toBlockDTOs(stored),
		Skipped:     parsed.Skipped,
		Truncated:   parsed.Truncated,
	})
}

// DeleteBlockedTime handles DELETE /blocked-time/{id}.
func (h *AvailabilityHandler) DeleteBlockedTime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBlockedTime(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) participantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	id, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return "", false
	}
	return id, true
}

func (h *AvailabilityHandler) resourceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	id, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return "", false
	}
	return id, true
}

type businessHoursRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type windowRequest struct {
	Weekday        *int   `json:"weekday"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	EffectiveFrom  string `json:"effective_from"`
	EffectiveUntil string `json:"effective_until"`
	Disabled       bool   `json:"disabled"`
}

type blockedTimeRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
	AllDay bool   `json:"all_day"`
}

type windowDTO struct {
	ID             string `json:"id"`
	ParticipantID  string `json:"participant_id"`
	Weekday        *int   `json:"weekday,omitempty"`
	Date           string `json:"date,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	EffectiveFrom  string `json:"effective_from,omitempty"`
	EffectiveUntil string `json:"effective_until,omitempty"`
	Disabled       bool   `json:"disabled,omitempty"`
}

type blockDTO struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Reason        string `json:"reason"`
	AllDay        bool   `json:"all_day"`
}

type listWindowsResponse struct {
	Windows []windowDTO `json:"windows"`
}

type listBlockedTimeResponse struct {
	BlockedTime []blockDTO `json:"blocked_time"`
}

type importResponse struct {
	BlockedTime []blockDTO `json:"blocked_time"`
	Skipped     int        `json:"skipped"`
	Truncated   bool       `json:"truncated,omitempty"`
}

func toWindowDTO(w application.Window) windowDTO {
	dto := windowDTO{
		ID:             w.ID,
		ParticipantID:  w.ParticipantID,
		Date:           w.Date.String(),
		Start:          w.Start.String(),
		End:            w.End.String(),
		EffectiveFrom:  w.EffectiveFrom.String(),
		EffectiveUntil: w.EffectiveUntil.String(),
		Disabled:       w.Disabled,
	}
	if !w.Override() {
		weekday := int(w.Weekday)
		dto.Weekday = &weekday
	}
	return dto
}

func toWindowDTOs(windows []application.Window) []windowDTO {
	out := make([]windowDTO, 0, len(windows))
	for _, w := range windows {
		out = append(out, toWindowDTO(w))
	}
	return out
}

func toBlockDTO(b application.Block) blockDTO {
	return blockDTO{
		ID:            b.ID,
		ParticipantID: b.ParticipantID,
		Start:         formatTime(b.Interval.Start),
		End:           formatTime(b.Interval.End),
		Reason:        string(b.Reason),
		AllDay:        b.AllDay,
	}
}

func toBlockDTOs(blocks []application.Block) []blockDTO {
	out := make([]blockDTO, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toBlockDTO(b))
	}
	return out
}
