package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNoop(t *testing.T) {
	unlock, ok, err := Noop{}.TryLock(context.Background(), "k", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if err := unlock(context.Background()); err != nil {
		t.Errorf("unlock failed: %v", err)
	}
	if err := (Noop{}).Wait(context.Background(), "k"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

// Needs a disposable server, e.g. CATALOG_TEST_REDIS_URL=redis://localhost:6379/15.
func TestRedis(t *testing.T) {
	url := os.Getenv("CATALOG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CATALOG_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedisFromURL(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()
	r.poll = 10 * time.Millisecond

	key := "test:" + uuid.NewString()
	unlock, ok, err := r.TryLock(ctx, key, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first lock, got %v %v", ok, err)
	}

	if _, ok, err := r.TryLock(ctx, key, 5*time.Second); err != nil || ok {
		t.Fatalf("expected second lock to fail, got %v %v", ok, err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Wait(ctx, key) }()

	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after unlock")
	}
}
