package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter_PerHostBuckets(t *testing.T) {
	hl := NewHostLimiter(1, 1, 0, 0)
	// rate.Limiter fails fast when the next token is past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := hl.Wait(ctx, "https://www.worldofbooks.com/en-gb"); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	if err := hl.Wait(ctx, "https://www.worldofbooks.com/en-gb/collections/fiction"); err == nil {
		t.Error("second request to the same host should be limited")
	}
	if err := hl.Wait(ctx, "https://cdn.example.com/a.jpg"); err != nil {
		t.Errorf("other host should have its own bucket: %v", err)
	}
	if err := hl.Wait(ctx, "::not a url"); err != nil {
		t.Errorf("unparseable URL should not be limited: %v", err)
	}
}

func TestHostLimiter_PolitenessRange(t *testing.T) {
	hl := NewHostLimiter(60, 1, 100*time.Millisecond, 200*time.Millisecond)
	for i := 0; i < 50; i++ {
		d := hl.politeness()
		if d < 100*time.Millisecond || d >= 200*time.Millisecond {
			t.Fatalf("politeness %v out of range", d)
		}
	}

	fixed := NewHostLimiter(60, 1, 50*time.Millisecond, 10*time.Millisecond)
	if d := fixed.politeness(); d != 50*time.Millisecond {
		t.Errorf("max below min should pin to min, got %v", d)
	}
}

func TestHostLimiter_WaitAppliesPoliteness(t *testing.T) {
	hl := NewHostLimiter(600, 5, 20*time.Millisecond, 20*time.Millisecond)

	var slept time.Duration
	hl.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	if err := hl.Wait(context.Background(), "https://www.worldofbooks.com/"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if slept != 20*time.Millisecond {
		t.Errorf("slept %v, want 20ms", slept)
	}
}

func TestHostLimiter_WaitCancelled(t *testing.T) {
	hl := NewHostLimiter(1, 1, 0, 0)
	if err := hl.Wait(context.Background(), "https://www.worldofbooks.com/"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hl.Wait(ctx, "https://www.worldofbooks.com/"); err == nil {
		t.Error("expected error from cancelled context")
	}
}
