package errors

import stderrors "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ClassOf reports the reaction class for any error. Errors outside the
// domain type are treated as invalid-input class so callers never retry
// or terminate on an unclassified failure by accident.
func ClassOf(err error) Class {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code.Class()
	}
	return ClassInvalid
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	return ClassOf(err) == ClassFatal
}

// IsRecoverable reports whether err should be retried with backoff.
func IsRecoverable(err error) bool {
	return ClassOf(err) == ClassRecoverable
}

// ExitCodeOf maps an error to the process exit status for fatal paths.
func ExitCodeOf(err error) int {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code.ExitCode()
	}
	return ExitCodeGeneric
}
