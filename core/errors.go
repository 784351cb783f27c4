package core

import "github.com/pkg/errors"

// FieldError pins a validation failure to a single request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field failures alongside the triggering error.
// The HTTP error handler renders Fields to the client when present.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks a failure the API cannot recover from in place; the error
// handler turns it into a graceful shutdown signal.
type shutdown struct {
	message string
}

// NewShutdownError returns an error that IsShutdown reports true for.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string { return s.message }

// IsShutdown checks the cause chain for a shutdown error.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
