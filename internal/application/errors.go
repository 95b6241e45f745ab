package application

import (
	"errors"
	"strings"

	"github.com/manuel-Igtm/meeting-tool/internal/availability"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/recurrence"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a resource with the same identifier is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when an authoritative booking found the slot taken.
	// The concrete error is a *scheduler.ConflictError carrying the report.
	ErrConflict = scheduler.ErrConflict
	// ErrUnknownParticipant is returned in strict mode for participants without data.
	ErrUnknownParticipant = scheduler.ErrUnknownParticipant
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string

	cause error
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// Unwrap exposes the engine error the validation failure was derived from, if any.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.cause
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapEngineError turns caller input errors raised by the scheduling engine
// into a ValidationError and passes everything else through.
func mapEngineError(err error) error {
	if err == nil {
		return nil
	}
	var reqErr *scheduler.RequestError
	switch {
	case errors.As(err, &reqErr):
		vErr := fieldError(reqErr.Field, reqErr.Message)
		vErr.cause = err
		return vErr
	case errors.Is(err, scheduler.ErrInvalidInterval):
		vErr := fieldError("time", "end must be after start")
		vErr.cause = err
		return vErr
	}
	return err
}

// mapRepoError translates persistence sentinels into service errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := fieldError("record", "violates a storage constraint")
		vErr.cause = err
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := fieldError("record", "related records are missing")
		vErr.cause = err
		return vErr
	}
	return err
}

// domainFieldError maps a validation error from the availability or
// recurrence packages onto the request field it belongs to.
func domainFieldError(field string, err error) *ValidationError {
	message := err.Error()
	if _, after, ok := strings.Cut(message, ": "); ok {
		message = after
	}
	switch {
	case errors.Is(err, availability.ErrInvalidClock),
		errors.Is(err, availability.ErrInvalidWindow),
		errors.Is(err, availability.ErrInvalidWeekday),
		errors.Is(err, availability.ErrInvalidReason),
		errors.Is(err, recurrence.ErrInvalidFrequency),
		errors.Is(err, recurrence.ErrInvalidIntervalDays),
		errors.Is(err, recurrence.ErrInvalidCount),
		errors.Is(err, recurrence.ErrInvalidUntil):
	default:
		message = "is invalid"
	}
	vErr := fieldError(field, message)
	vErr.cause = err
	return vErr
}
