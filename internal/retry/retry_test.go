package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", int(e), http.StatusText(int(e)))
}
func (e statusError) GetStatusCode() int { return int(e) }

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return statusError(http.StatusServiceUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_NonRetryableStatus(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return statusError(http.StatusNotFound)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls)
	}
}

func TestWithRetry_WrappedStatusCoder(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return fmt.Errorf("fetch: %w", statusError(http.StatusRequestTimeout))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 408 to be retried to the limit, got %d calls", calls)
	}
	var se statusError
	if !errors.As(err, &se) || se != http.StatusRequestTimeout {
		t.Error("final error should wrap the last attempt's error")
	}
}

func TestWithRetry_CustomClassifier(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, w := range want {
		if got := calculateBackoff(attempt, cfg); got != w {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
}
