package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/interval"
)

var (
	// ErrInvalidInterval indicates an end not strictly after start or a non-positive duration.
	ErrInvalidInterval = interval.ErrInvalidInterval
	// ErrInvalidRequest indicates malformed input other than an interval.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
	// ErrUnknownParticipant indicates a participant without resolvable data in strict mode.
	ErrUnknownParticipant = errors.New("scheduler: unknown participant")
	// ErrConflict indicates the authoritative check found the slot taken.
	ErrConflict = errors.New("scheduler: conflict")
	// ErrNoClaimer indicates authoritative booking was requested without a serialization boundary.
	ErrNoClaimer = errors.New("scheduler: authoritative booking requires a claimer")
)

// RequestError reports a single malformed request field.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("scheduler: invalid %s: %s", e.Field, e.Message)
}

// Is makes RequestError match ErrInvalidRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func invalidField(field, message string) error {
	return &RequestError{Field: field, Message: message}
}

// UnknownParticipantError lists the identifiers that could not be resolved.
type UnknownParticipantError struct {
	IDs []string
}

func (e *UnknownParticipantError) Error() string {
	return "scheduler: unknown participants: " + strings.Join(e.IDs, ", ")
}

// Is makes UnknownParticipantError match ErrUnknownParticipant.
func (e *UnknownParticipantError) Is(target error) bool {
	return target == ErrUnknownParticipant
}

// ConflictError carries the report that rejected an authoritative booking.
type ConflictError struct {
	Report ConflictReport
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduler: conflict: %d overlapping entries", len(e.Report.Conflicts))
}

// Is makes ConflictError match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
