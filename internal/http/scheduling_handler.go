package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/ics"
	"github.com/manuel-Igtm/meeting-tool/internal/interval"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

type schedulingService interface {
	CheckConflicts(ctx context.Context, params application.CheckConflictsParams) (scheduler.ConflictReport, error)
	SuggestSlots(ctx context.Context, params application.SuggestSlotsParams) (scheduler.Suggestions, error)
	NextAvailable(ctx context.Context, params application.NextAvailableParams) (application.FreeSpan, bool, error)
	ResolveAvailability(ctx context.Context, participantID, date string) (application.AvailabilityDay, error)
	Agenda(ctx context.Context, params application.AgendaParams) (application.Agenda, error)
}

// SchedulingHandler serves the read side of the engine: conflict checks,
// suggestions, free time and agendas.
type SchedulingHandler struct {
	service   schedulingService
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
	responder responder
}

// NewSchedulingHandler constructs a SchedulingHandler. loc resolves date
// only query parameters; now stamps exported calendars.
func NewSchedulingHandler(service schedulingService, loc *time.Location, now func() time.Time, logger *slog.Logger) *SchedulingHandler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &SchedulingHandler{
		service:   service,
		location:  loc,
		now:       now,
		logger:    logger,
		responder: newResponder(logger),
	}
}

// CheckConflicts handles POST /scheduling/check-conflicts.
func (h *SchedulingHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req checkConflictsRequest
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

	report, err := h.service.CheckConflicts(r.Context(), application.CheckConflictsParams{
		Start:           start,
		End:             end,
		ParticipantIDs:  req.ParticipantIDs,
		IgnoreMeetingID: strings.TrimSpace(req.IgnoreMeetingID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConflictReportDTO(report))
}

// SuggestSlots handles POST /scheduling/suggest-slots.
func (h *SchedulingHandler) SuggestSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req suggestSlotsRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}

	out, err := h.service.SuggestSlots(r.Context(), application.SuggestSlotsParams{
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		DurationMinutes:  req.DurationMinutes,
		ParticipantIDs:   req.ParticipantIDs,
		NumSuggestions:   req.NumSuggestions,
		SearchWindowDays: req.SearchWindowDays,
		IgnoreMeetingID:  strings.TrimSpace(req.IgnoreMeetingID),
		IncludePast:      req.IncludePast,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "scheduling", "SuggestSlots").
		DebugContext(r.Context(), "suggestions served", "slots", len(out.Slots), "reason", out.Reason)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestionsResponse{
		Slots:     toIntervalDTOs(out.Slots),
		Reason:    string(out.Reason),
		Truncated: out.Truncated,
	})
}

// NextAvailable handles POST /scheduling/next-available.
func (h *SchedulingHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req nextAvailableRequest
	if !h.responder.decode(r.Context(), w, r, &req) {
		return
	}
	fields := fieldErrors{}
	after := fields.time("after", req.After)
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return
	}

	slot, found, err := h.service.NextAvailable(r.Context(), application.NextAvailableParams{
		After:           after,
		DurationMinutes: req.DurationMinutes,
		ParticipantIDs:  req.ParticipantIDs,
		MaxDays:         req.MaxDays,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := nextAvailableResponse{Found: found}
	if found {
		dto := intervalDTO{Start: formatTime(slot.Start), End: formatTime(slot.End)}
		resp.Slot = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Availability handles GET /participants/{id}/availability?date=YYYY-MM-DD.
func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(participantID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = interval.DateOf(h.now(), h.location).String()
	}

	day, err := h.service.ResolveAvailability(r.Context(), participantID, date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	free := make([]intervalDTO, 0, len(day.Free))
	for _, span := range day.Free {
		free = append(free, intervalDTO{Start: formatTime(span.Start), End: formatTime(span.End)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		ParticipantID: day.ParticipantID,
		Date:          day.Date,
		Free:          free,
	})
}

// Agenda handles GET /participants/{id}/agenda.
func (h *SchedulingHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	agenda, ok := h.agenda(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAgendaDTO(agenda))
}

// ExportCalendar handles GET /participants/{id}/busy.ics and renders the
// agenda range as an iCalendar document.
func (h *SchedulingHandler) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	agenda, ok := h.agenda(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, agenda.Entries, ics.ExportOptions{
		ParticipantID: agenda.ParticipantID,
		Stamp:         h.now(),
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+agenda.ParticipantID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}

func (h *SchedulingHandler) agenda(w http.ResponseWriter, r *http.Request) (application.Agenda, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.Agenda{}, false
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(participantID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return application.Agenda{}, false
	}

	params, fields := buildAgendaParams(r.URL.Query(), h.location)
	if fields.any() {
		h.responder.writeFieldErrors(r.Context(), w, fields)
		return application.Agenda{}, false
	}
	params.ParticipantID = participantID

	agenda, err := h.service.Agenda(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return application.Agenda{}, false
	}
	return agenda, true
}

// buildAgendaParams reads period, date, start and end. Without any of them
// the current week is listed.
func buildAgendaParams(values url.Values, loc *time.Location) (application.AgendaParams, fieldErrors) {
	fields := fieldErrors{}
	params := application.AgendaParams{Period: application.ListPeriod(strings.TrimSpace(values.Get("period")))}

	if date := strings.TrimSpace(values.Get("date")); date != "" {
		if d, err := interval.ParseDate(date); err == nil {
			params.Reference = d.Start(loc)
		} else {
			fields["date"] = "must use the YYYY-MM-DD format"
		}
	}
	if start := fields.time("start", values.Get("start")); !start.IsZero() {
		params.Start = &start
	}
	if end := fields.time("end", values.Get("end")); !end.IsZero() {
		params.End = &end
	}
	if params.Period == application.ListPeriodNone && params.Start == nil && params.End == nil {
		params.Period = application.ListPeriodWeek
	}
	return params, fields
}

type checkConflictsRequest struct {
	Start           string   `json:"start"`
	End             string   `json:"end"`
	ParticipantIDs  []string `json:"participant_ids"`
	IgnoreMeetingID string   `json:"ignore_meeting_id"`
}

type suggestSlotsRequest struct {
	PreferredDate    string   `json:"preferred_date"`
	PreferredTime    string   `json:"preferred_time"`
	DurationMinutes  int      `json:"duration_minutes"`
	ParticipantIDs   []string `json:"participant_ids"`
	NumSuggestions   int      `json:"num_suggestions"`
	SearchWindowDays int      `json:"search_window_days"`
	IgnoreMeetingID  string   `json:"ignore_meeting_id"`
	IncludePast      bool     `json:"include_past"`
}

type nextAvailableRequest struct {
	After           string   `json:"after"`
	DurationMinutes int      `json:"duration_minutes"`
	ParticipantIDs  []string `json:"participant_ids"`
	MaxDays         int      `json:"max_days"`
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type conflictDTO struct {
	ParticipantID   string      `json:"participant_id"`
	Kind            string      `json:"kind"`
	SourceID        string      `json:"source_id"`
	OccurrenceIndex *int        `json:"occurrence_index,omitempty"`
	Busy            intervalDTO `json:"busy"`
	Overlap         intervalDTO `json:"overlap"`
}

type conflictReportDTO struct {
	HasConflict bool          `json:"has_conflict"`
	Conflicts   []conflictDTO `json:"conflicts"`
	Truncated   bool          `json:"truncated,omitempty"`
}

type suggestionsResponse struct {
	Slots     []intervalDTO `json:"slots"`
	Reason    string        `json:"reason"`
	Truncated bool          `json:"truncated,omitempty"`
}

type nextAvailableResponse struct {
	Found bool         `json:"found"`
	Slot  *intervalDTO `json:"slot,omitempty"`
}

type availabilityResponse struct {
	ParticipantID string        `json:"participant_id"`
	Date          string        `json:"date"`
	Free          []intervalDTO `json:"free"`
}

type agendaEntryDTO struct {
	Kind            string `json:"kind"`
	SourceID        string `json:"source_id"`
	Title           string `json:"title,omitempty"`
	OccurrenceIndex *int   `json:"occurrence_index,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Start           string `json:"start"`
	End             string `json:"end"`
}

type agendaDTO struct {
	ParticipantID string           `json:"participant_id"`
	Start         string           `json:"start"`
	End           string           `json:"end"`
	Entries       []agendaEntryDTO `json:"entries"`
	Truncated     bool             `json:"truncated,omitempty"`
}

func toIntervalDTO(iv interval.Interval) intervalDTO {
	return intervalDTO{Start: formatTime(iv.Start), End: formatTime(iv.End)}
}

func toIntervalDTOs(in []interval.Interval) []intervalDTO {
	out := make([]intervalDTO, 0, len(in))
	for _, iv := range in {
		out = append(out, toIntervalDTO(iv))
	}
	return out
}

func toConflictReportDTO(report scheduler.ConflictReport) conflictReportDTO {
	out := conflictReportDTO{
		HasConflict: report.HasConflict,
		Conflicts:   make([]conflictDTO, 0, len(report.Conflicts)),
		Truncated:   report.Truncated,
	}
	for _, c := range report.Conflicts {
		dto := conflictDTO{
			ParticipantID: c.ParticipantID,
			Kind:          string(c.Kind),
			SourceID:      c.SourceID,
			Busy:          toIntervalDTO(c.Busy),
			Overlap:       toIntervalDTO(c.Overlap),
		}
		if c.Kind == scheduler.ConflictKindMeeting {
			idx := c.OccurrenceIndex
			dto.OccurrenceIndex = &idx
		}
		out.Conflicts = append(out.Conflicts, dto)
	}
	return out
}

func toAgendaDTO(agenda application.Agenda) agendaDTO {
	out := agendaDTO{
		ParticipantID: agenda.ParticipantID,
		Start:         formatTime(agenda.Start),
		End:           formatTime(agenda.End),
		Entries:       make([]agendaEntryDTO, 0, len(agenda.Entries)),
		Truncated:     agenda.Truncated,
	}
	for _, entry := range agenda.Entries {
		dto := agendaEntryDTO{
			Kind:     string(entry.Kind),
			SourceID: entry.SourceID,
			Title:    entry.Title,
			Reason:   string(entry.Reason),
			Start:    formatTime(entry.Interval.Start),
			End:      formatTime(entry.Interval.End),
		}
		if entry.Kind == scheduler.ConflictKindMeeting {
			idx := entry.OccurrenceIndex
			dto.OccurrenceIndex = &idx
		}
		out.Entries = append(out.Entries, dto)
	}
	return out
}
