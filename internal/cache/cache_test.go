package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache[string](0, func(v string) int64 { return int64(len(v)) })
	defer c.Close()

	if err := c.Set("a", "alpha", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := c.Get("a"); !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}

	stats := c.Stats()
	if stats["hits"].(uint64) != 1 || stats["misses"].(uint64) != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache[int](0, nil)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 1, time.Second)
	now = now.Add(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be removed, have %d", c.Len())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	// Room for two entries of overhead only.
	c := NewMemoryCache[int](2*entryOverhead, nil)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Get("a") // a becomes most recent
	c.Set("c", 3, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be cached")
	}
}

func TestMemoryCache_UpdateAndDelete(t *testing.T) {
	c := NewMemoryCache[string](0, func(v string) int64 { return int64(len(v)) })
	defer c.Close()

	c.Set("k", "one", time.Minute)
	c.Set("k", "three", time.Minute)
	if v, _ := c.Get("k"); v != "three" {
		t.Errorf("Get(k) = %q", v)
	}
	if got := c.Stats()["size_bytes"].(int64); got != entryOverhead+5 {
		t.Errorf("size_bytes = %d", got)
	}

	c.Delete("k")
	c.Delete("k")
	if c.Len() != 0 {
		t.Error("expected empty cache")
	}
}
