package http

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// fieldErrors collects request parameters that could not be parsed before
// the service is called. They are reported the same way as service
// validation failures.
type fieldErrors map[string]string

func (f fieldErrors) any() bool {
	return len(f) > 0
}

// time parses an RFC 3339 timestamp. Empty values yield the zero time and
// are left for the service to judge.
func (f fieldErrors) time(field, value string) time.Time {
	ts, err := parseTime(value)
	if err != nil {
		f[field] = "must be an RFC 3339 timestamp"
	}
	return ts
}

func (r responder) writeFieldErrors(ctx context.Context, w http.ResponseWriter, fields fieldErrors) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   statusMessage(http.StatusUnprocessableEntity),
		Errors:    fields,
	})
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
