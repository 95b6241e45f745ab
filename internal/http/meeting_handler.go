package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

type meetingService interface {
	CreateMeeting(ctx context.Context, input application.MeetingInput) (application.BookingResult, error)
	UpdateMeeting(ctx context.Context, meetingID string, input application.MeetingInput) (application.BookingResult, error)
	GetMeeting(ctx context.Context, meetingID string) (application.Meeting, error)
	ListMeetings(ctx context.Context, params application.ListMeetingsParams) ([]application.Meeting, error)
	Respond(ctx context.Context, meetingID, participantID string, response scheduler.ResponseStatus) (application.Meeting, error)
	CancelOccurrence(ctx context.Context, params application.CancelOccurrenceParams) (application.Meeting, error)
	SetStatus(ctx context.Context, meetingID string, status scheduler.Status) (application.BookingResult, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
}

// MeetingHandler serves meeting bookings and their lifecycle.
type MeetingHandler struct {
	service   meetingService
	logger    *slog.Logger
	responder responder
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{service: service, logger: logger, responder: newResponder(logger)}
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req meetingRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	input, fields := req.toInput()
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	result, err := h.service.CreateMeeting(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "meetings", "Create").
		InfoContext(r.Context(), "meeting booked", "meeting_id", result.Meeting.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingResponse(result))
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req meetingRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	input, fields := req.toInput()
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	result, err := h.service.UpdateMeeting(r.Context(), meetingID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingResponse(result))
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	meeting, err := h.service.GetMeeting(r.Context(), meetingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingDTO(meeting))
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, fields := buildListMeetingsParams(r.URL.Query())
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}
	meetings, err := h.service.ListMeetings(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]meetingDTO, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, toMeetingDTO(m))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMeetingsResponse{Meetings: out})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMeeting(r.Context(), meetingID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Respond handles POST /meetings/{id}/responses.
func (h *MeetingHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}

	meeting, err := h.service.Respond(r.Context(), meetingID, strings.TrimSpace(req.ParticipantID),
		scheduler.ResponseStatus(strings.ToLower(strings.TrimSpace(req.Response))))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingDTO(meeting))
}

// CancelOccurrence handles POST /meetings/{id}/cancel-occurrence.
func (h *MeetingHandler) CancelOccurrence(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req cancelOccurrenceRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	params := application.CancelOccurrenceParams{MeetingID: meetingID, Index: req.Index}
	fields := fieldErrors{}
	if start := fields.time("start", req.Start); !start.IsZero() {
		params.Start = &start
	}
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	meeting, err := h.service.CancelOccurrence(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingDTO(meeting))
}

// SetStatus handles PUT /meetings/{id}/status. Reinstating a cancelled
// meeting re-books it and may fail with 409.
func (h *MeetingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}

	result, err := h.service.SetStatus(r.Context(), meetingID, scheduler.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingResponse(result))
}

func (h *MeetingHandler) meetingID(w http.ResponseWriter, r *http.Request) (string, bool) {
	meetingID, ok := MeetingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(meetingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return "", false
	}
	return meetingID, true
}

type recurrenceRequest struct {
	Frequency    string `json:"frequency"`
	IntervalDays int    `json:"interval_days"`
	Count        int    `json:"count"`
	Until        string `json:"until"`
}

type meetingRequest struct {
	OrganizerID    string             `json:"organizer_id"`
	Title          string             `json:"title"`
	Description    *string            `json:"description"`
	Start          string             `json:"start"`
	End            string             `json:"end"`
	Recurrence     *recurrenceRequest `json:"recurrence"`
	ParticipantIDs []string           `json:"participant_ids"`
}

func (r meetingRequest) toInput() (application.MeetingInput, fieldErrors) {
	fields := fieldErrors{}
	input := application.MeetingInput{
		OrganizerID:    strings.TrimSpace(r.OrganizerID),
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		Start:          fields.time("start", r.Start),
		End:            fields.time("end", r.End),
		ParticipantIDs: append([]string(nil), r.ParticipantIDs...),
	}
	if rec := r.Recurrence; rec != nil {
		input.Recurrence = application.RecurrenceInput{
			Frequency:    strings.TrimSpace(rec.Frequency),
			IntervalDays: rec.IntervalDays,
			Count:        rec.Count,
		}
		if until := fields.time("recurrence.until", rec.Until); !until.IsZero() {
			input.Recurrence.Until = &until
		}
	}
	return input, fields
}

type respondRequest struct {
	ParticipantID string `json:"participant_id"`
	Response      string `json:"response"`
}

type cancelOccurrenceRequest struct {
	Index *int   `json:"index"`
	Start string `json:"start"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type recurrenceDTO struct {
	Frequency    string `json:"frequency"`
	IntervalDays int    `json:"interval_days,omitempty"`
	Count        int    `json:"count,omitempty"`
	Until        string `json:"until,omitempty"`
}

type meetingDTO struct {
	ID              string            `json:"id"`
	OrganizerID     string            `json:"organizer_id"`
	Title           string            `json:"title"`
	Description     *string           `json:"description,omitempty"`
	Start           string            `json:"start"`
	End             string            `json:"end"`
	Recurrence      recurrenceDTO     `json:"recurrence"`
	ExcludedIndices []int             `json:"excluded_indices,omitempty"`
	ExcludedStarts  []string          `json:"excluded_starts,omitempty"`
	ParticipantIDs  []string          `json:"participant_ids"`
	Responses       map[string]string `json:"responses"`
	Status          string            `json:"status"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

type bookingResponse struct {
	Meeting meetingDTO        `json:"meeting"`
	Report  conflictReportDTO `json:"report"`
}

type listMeetingsResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

func toMeetingDTO(m application.Meeting) meetingDTO {
	dto := meetingDTO{
		ID:              m.ID,
		OrganizerID:     m.OrganizerID,
		Title:           m.Title,
		Description:     m.Description,
		Start:           formatTime(m.Start),
		End:             formatTime(m.End),
		ExcludedIndices: append([]int(nil), m.ExcludedIndices...),
		ParticipantIDs:  append([]string{}, m.ParticipantIDs...),
		Responses:       make(map[string]string, len(m.Responses)),
		Status:          string(m.Status),
		CreatedAt:       formatTime(m.CreatedAt),
		UpdatedAt:       formatTime(m.UpdatedAt),
		Recurrence: recurrenceDTO{
			Frequency:    m.Recurrence.Frequency,
			IntervalDays: m.Recurrence.IntervalDays,
			Count:        m.Recurrence.Count,
		},
	}
	if m.Recurrence.Until != nil {
		dto.Recurrence.Until = formatTime(*m.Recurrence.Until)
	}
	for _, start := range m.ExcludedStarts {
		dto.ExcludedStarts = append(dto.ExcludedStarts, formatTime(start))
	}
	for participant, response := range m.Responses {
		dto.Responses[participant] = string(response)
	}
	return dto
}

func toBookingResponse(result application.BookingResult) bookingResponse {
	return bookingResponse{
		Meeting: toMeetingDTO(result.Meeting),
		Report:  toConflictReportDTO(result.Report),
	}
}

// buildListMeetingsParams reads participant, start, end and a comma
// separated status list.
func buildListMeetingsParams(values url.Values) (application.ListMeetingsParams, fieldErrors) {
	fields := fieldErrors{}
	params := application.ListMeetingsParams{ParticipantID: strings.TrimSpace(values.Get("participant"))}
	if start := fields.time("start", values.Get("start")); !start.IsZero() {
		params.Start = &start
	}
	if end := fields.time("end", values.Get("end")); !end.IsZero() {
		params.End = &end
	}
	for _, status := range parseCSV(values.Get("status")) {
		params.Statuses = append(params.Statuses, scheduler.Status(strings.ToLower(status)))
	}
	return params, fields
}
