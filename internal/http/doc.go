// Package http exposes the scheduling engine as a JSON API.
//
// The router exposes the following endpoints:
//   - POST /scheduling/check-conflicts: advisory conflict check. Body:
//     {"start","end","participant_ids","ignore_meeting_id"}. Response: the
//     conflict report {"has_conflict","conflicts","truncated"}.
//   - POST /scheduling/suggest-slots: ranked free slots. Body:
//     {"preferred_date","preferred_time","duration_minutes","participant_ids",
//     "num_suggestions","search_window_days","ignore_meeting_id","include_past"}.
//     Response: {"slots","reason","truncated"}; an empty slot list is not an error.
//   - POST /scheduling/next-available: earliest common slot after an instant.
//   - GET /participants/{id}/availability?date=: free time on one day.
//   - GET /participants/{id}/agenda and GET /participants/{id}/busy.ics: busy
//     time for period=day|week|month around date, or explicit start and end.
//   - GET, POST /meetings and GET, PUT, DELETE /meetings/{id}: meetings are
//     booked authoritatively; a taken slot answers 409 with the report.
//   - POST /meetings/{id}/responses, POST /meetings/{id}/cancel-occurrence and
//     PUT /meetings/{id}/status: meeting lifecycle.
//   - GET, POST /participants and GET, PUT, DELETE /participants/{id}.
//   - PUT /participants/{id}/business-hours, GET, POST /participants/{id}/windows
//     and DELETE /windows/{id}: declared availability.
//   - GET, POST /participants/{id}/blocked-time, POST
//     /participants/{id}/blocked-time/import (text/calendar body) and DELETE
//     /blocked-time/{id}: blocked time.
//   - GET /healthz and GET /readyz.
//
// Timestamps are RFC 3339 on input and UTC on output. Errors use the body
// {"error_code","message","errors"}.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
