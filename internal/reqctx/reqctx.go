package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const requestKey key = 0

// RequestContext identifies one inbound API request or CLI invocation.
type RequestContext struct {
	RequestID string
	StartTime time.Time
}

// WithRequestID attaches a caller-supplied id, e.g. from an X-Request-Id
// header. An empty id gets a fresh uuid.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestKey, &RequestContext{
		RequestID: id,
		StartTime: time.Now(),
	})
}

// GetRequestContext never returns nil; an unmarked context reports "unknown".
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestKey).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{
		RequestID: "unknown",
		StartTime: time.Now(),
	}
}

// RequestError wraps an error with request context
type RequestError struct {
	RequestID string
	Err       error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RequestID, e.Err)
}

// Unwrap returns the underlying error
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError from context
func NewRequestError(ctx context.Context, err error) error {
	rc := GetRequestContext(ctx)
	return &RequestError{
		RequestID: rc.RequestID,
		Err:       err,
	}
}
