// Package domainerrors provides coded errors shared across careergate modules.
//
// Services wrap failures with a Code; transport layers translate codes to HTTP
// statuses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	// CodeValidation covers client-side input problems (bad file type/size,
	// missing required field). Never retried automatically.
	CodeValidation Code = "validation_error"

	// CodeRateLimited is raised by the rate limiter gate. The error carries
	// the remaining wait time in seconds.
	CodeRateLimited Code = "rate_limited"

	// CodeMissingPrerequisite means an earlier funnel step must complete first.
	CodeMissingPrerequisite Code = "missing_prerequisite"

	// CodeRemoteCall covers upstream network errors and non-2xx responses.
	CodeRemoteCall Code = "remote_call_failure"

	// CodeConflict rejects a re-entrant trigger while a step is in flight.
	CodeConflict Code = "conflict"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. Field and TimeLeftSeconds are optional
// payloads used by validation and rate-limit errors respectively.
type Error struct {
	Code    Code
	Message string

	// Field names the offending input field for validation errors.
	Field string

	// TimeLeftSeconds is the wait until the rate-limit window expires.
	TimeLeftSeconds int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithField attaches the offending field name and returns the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithTimeLeft attaches the remaining wait time and returns the error.
func (e *Error) WithTimeLeft(seconds int) *Error {
	e.TimeLeftSeconds = seconds
	return e
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors and the empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// AsError extracts the *Error from err's chain, or nil.
func AsError(err error) *Error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// HTTPStatus maps a code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeMissingPrerequisite:
		return http.StatusPreconditionFailed
	case CodeRemoteCall:
		return http.StatusBadGateway
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
