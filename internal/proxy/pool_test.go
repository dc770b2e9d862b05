package proxy

import (
	"testing"
	"time"
)

func TestProxyPool(t *testing.T) {
	proxies := []string{"p1", "p2", "p3"}
	pool := NewProxyPoolWithCooldown(proxies, 0)

	// Test rotation
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.GetNext(); p != "p2" {
		t.Errorf("Expected p2, got %s", p)
	}
	if p := pool.GetNext(); p != "p3" {
		t.Errorf("Expected p3, got %s", p)
	}
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}

	// Test failure
	pool.MarkFailed("p2")

	// Should skip p2
	// Current index is at p2 (after returning p1)
	if p := pool.GetNext(); p != "p3" {
		t.Errorf("Expected p3 (skipping p2), got %s", p)
	}

	// Next should be p1
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}

	// Next should be p3 (skipping p2)
	if p := pool.GetNext(); p != "p3" {
		t.Errorf("Expected p3, got %s", p)
	}

	// Mark healthy
	pool.MarkHealthy("p2")

	// Should include p2 again
	// Current index is at p1 (after returning p3)
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.GetNext(); p != "p2" {
		t.Errorf("Expected p2, got %s", p)
	}
}

func TestProxyPool_CooldownExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := NewProxyPoolWithCooldown([]string{"p1", "p2"}, time.Minute)
	pool.now = func() time.Time { return now }

	pool.MarkFailed("p1")
	if p := pool.GetNext(); p != "p2" {
		t.Errorf("Expected p2 while p1 cools down, got %s", p)
	}

	now = now.Add(2 * time.Minute)
	if p := pool.GetNext(); p != "p1" {
		t.Errorf("Expected p1 after cooldown, got %s", p)
	}
}

func TestProxyPool_Empty(t *testing.T) {
	pool := NewProxyPoolWithCooldown(nil, 0)
	if p := pool.GetNext(); p != "" {
		t.Errorf("Expected empty proxy, got %s", p)
	}
	pool.MarkFailed("")
	if pool.cooldown != DefaultCooldown {
		t.Errorf("Expected default cooldown, got %s", pool.cooldown)
	}
}
