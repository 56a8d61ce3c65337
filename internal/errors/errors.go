package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a p3seq error code.
type ErrorCode string

const (
	ErrInvalidQuery           ErrorCode = "INVALID_QUERY"            // 400
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"          // 400
	ErrNotFound               ErrorCode = "NOT_FOUND"                // 404
	ErrMissingIndicatorColumn ErrorCode = "MISSING_INDICATOR_COLUMN" // 422
	ErrSourceUnavailable      ErrorCode = "SOURCE_UNAVAILABLE"       // 502
	ErrSourceLayout           ErrorCode = "SOURCE_LAYOUT"            // 502
	ErrInternal               ErrorCode = "INTERNAL"                 // 500
)

// QueryGuidance is shown when a search query is rejected.
const QueryGuidance = "enter at least 2 digits (e.g. 8057) and search again"

// Error represents a structured error with code, status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidQuery creates a 400 error for an empty, non-digit or too short query.
// It carries guidance for the user rather than signalling a fault.
func NewInvalidQuery(query, reason string) *Error {
	return &Error{
		Code:    ErrInvalidQuery,
		Status:  400,
		Message: fmt.Sprintf("%s; %s", reason, QueryGuidance),
		Details: map[string]any{"query": query},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a year or run that does not exist.
func NewNotFound(what string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewMissingIndicatorColumn creates a 422 error when an indicator cannot be
// derived from the raw draw fields.
func NewMissingIndicatorColumn(indicator string, cause error) *Error {
	msg := fmt.Sprintf("cannot derive indicator %q", indicator)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{
		Code:    ErrMissingIndicatorColumn,
		Status:  422,
		Message: msg,
		Details: map[string]any{"indicator": indicator},
	}
}

// NewSourceUnavailable creates a 502 error when the draw source cannot be fetched.
func NewSourceUnavailable(year int, err error) *Error {
	msg := fmt.Sprintf("fetch year %d failed", year)
	if err != nil {
		msg += ": " + err.Error()
	}
	return &Error{
		Code:    ErrSourceUnavailable,
		Status:  502,
		Message: msg,
		Details: map[string]any{"year": year},
	}
}

// NewSourceLayout creates a 502 error when the source page no longer has the
// expected structure.
func NewSourceLayout(msg string) *Error {
	return &Error{
		Code:    ErrSourceLayout,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The cause is kept in Details for logging and never shown to callers.
func NewInternal(err error) *Error {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if err, or any error it wraps, is an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *Error
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}
