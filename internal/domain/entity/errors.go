package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrClaimNotFound is returned when no claim has the given id
	ErrClaimNotFound = errors.New("claim not found")

	// ErrSessionNotFound is returned for unknown or logged-out sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrForbidden is returned when the session role may not perform the action
	ErrForbidden = errors.New("action not permitted for this role")

	// ErrSubmissionInProgress is returned when the session already has an evaluation in flight
	ErrSubmissionInProgress = errors.New("a submission is already being evaluated for this session")
)

// ValidationError is a local, recoverable input error. No state changes when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MsgInsufficientClarity is the user-facing message for unusable evaluation responses
const MsgInsufficientClarity = "Neural extraction failed. Document clarity insufficient."

// ExtractionFailure means the evaluation service produced no usable verdict.
// The claim is never created; the user may resubmit.
type ExtractionFailure struct {
	Message string
	Err     error
}

// NewExtractionFailure creates an ExtractionFailure wrapping the underlying cause
func NewExtractionFailure(message string, err error) *ExtractionFailure {
	return &ExtractionFailure{Message: message, Err: err}
}

func (e *ExtractionFailure) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is, or wraps, a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExtractionFailure reports whether err is, or wraps, an ExtractionFailure
func IsExtractionFailure(err error) bool {
	var ef *ExtractionFailure
	return errors.As(err, &ef)
}
