package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	KindBlocked       Kind = "BLOCKED"
	KindTimeout       Kind = "TIMEOUT"
	KindNotFound      Kind = "NOT_FOUND"
	KindTransient     Kind = "TRANSIENT"
	KindPolicyBlocked Kind = "POLICY_BLOCKED"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrBlocked       = &FetchError{Kind: KindBlocked}
	ErrTimeout       = &FetchError{Kind: KindTimeout}
	ErrNotFound      = &FetchError{Kind: KindNotFound}
	ErrTransient     = &FetchError{Kind: KindTransient}
	ErrPolicyBlocked = &FetchError{Kind: KindPolicyBlocked}
)

// FetchError wraps a failed fetch with its classification.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "fetch failed"
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Underlying
}

// Is matches another FetchError by kind.
func (e *FetchError) Is(target error) bool {
	if t, ok := target.(*FetchError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// GetStatusCode exposes the HTTP status to the retry package.
func (e *FetchError) GetStatusCode() int {
	return e.StatusCode
}

// NewFetchError creates a FetchError of the given kind.
func NewFetchError(kind Kind, url, message string, err error) *FetchError {
	return &FetchError{
		Kind:       kind,
		URL:        url,
		Message:    message,
		Underlying: err,
	}
}

// Classify maps an HTTP status and/or transport error to a FetchError.
// A nil error with a status below 400 is not a failure and yields nil.
func Classify(url string, status int, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if err == nil && status > 0 && status < 400 {
		return nil
	}

	out := &FetchError{URL: url, StatusCode: status, Underlying: err}
	switch {
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		out.Kind = KindBlocked
		out.Message = "blocked by upstream"
	case status == http.StatusNotFound || status == http.StatusGone:
		out.Kind = KindNotFound
		out.Message = "page not found"
	case isTimeout(err):
		out.Kind = KindTimeout
		out.Message = "request timed out"
	default:
		out.Kind = KindTransient
		out.Message = "upstream error"
	}
	return out
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// Retryable reports whether retrying the same request soon can help.
// A 403 block is final; a 429 is not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		return true
	}
	switch fe.Kind {
	case KindPolicyBlocked, KindNotFound:
		return false
	case KindBlocked:
		return fe.StatusCode == http.StatusTooManyRequests
	case KindTimeout:
		return true
	}
	return fe.StatusCode == 0 || fe.StatusCode == http.StatusRequestTimeout || fe.StatusCode >= 500
}
