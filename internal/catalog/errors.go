package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a catalog failure class.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrUpstreamUnavailable = &Error{Code: CodeUpstreamUnavailable}
	ErrInvalidArgument     = &Error{Code: CodeInvalidArgument}
)

// Error is returned by Service operations.
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Underlying: err}
}

func notFound(format string, args ...any) *Error {
	return newError(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

func upstreamUnavailable(message string, err error) *Error {
	return newError(CodeUpstreamUnavailable, message, err)
}

// StatusOf returns the HTTP status for err. Errors that are not *Error map to 500.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.HTTPStatus()
	}
	return http.StatusInternalServerError
}
