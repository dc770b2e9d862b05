// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache defines the interface for short-lived response caching.
//
// Implementations should provide efficient retrieval and eviction strategies.
// Common implementations include:
//   - MemoryCache: In-memory cache with LRU eviction
type Cache[V any] interface {
	// Get retrieves a cached value by key.
	Get(key string) (V, bool)

	// Set stores a value with the specified TTL, replacing any previous entry.
	// Implementations may evict entries based on their eviction strategy.
	Set(key string, value V, ttl time.Duration) error

	// Delete removes a cached value. Missing keys are not an error.
	Delete(key string) error

	// Close stops background goroutines.
	Close()
}

// SizeFunc estimates the memory footprint of a cached value in bytes.
type SizeFunc[V any] func(V) int64

// entryOverhead approximates struct, pointer and bookkeeping cost per entry.
const entryOverhead = 1024

type cacheEntry[V any] struct {
	Value     V
	ExpiresAt time.Time
	Key       string
	Size      int64
}

// MemoryCache implements in-memory caching with LRU eviction bounded by size.
type MemoryCache[V any] struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.Mutex
	maxSize int64
	size    int64
	sizeOf  SizeFunc[V]
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache with LRU eviction. A nil sizeOf
// counts only the fixed per-entry overhead.
func NewMemoryCache[V any](maxSizeBytes int64, sizeOf SizeFunc[V]) *MemoryCache[V] {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 100 * 1024 * 1024 // Default: 100MB
	}
	if sizeOf == nil {
		sizeOf = func(V) int64 { return 0 }
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &MemoryCache[V]{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		sizeOf:  sizeOf,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}

	go c.cleanupExpired()

	return c
}

// Get retrieves a cached value and marks it most recently used.
func (mc *MemoryCache[V]) Get(key string) (V, bool) {
	var zero V

	mc.mu.Lock()
	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		mc.mu.Unlock()
		return zero, false
	}

	entry := element.Value.(*cacheEntry[V])

	if mc.now().After(entry.ExpiresAt) {
		mc.misses++
		mc.removeElement(element)
		mc.mu.Unlock()
		return zero, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++
	mc.mu.Unlock()

	log.Debug().Str("key", key).Msg("Cache hit")
	return entry.Value, true
}

// Set stores a value with TTL.
func (mc *MemoryCache[V]) Set(key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute // Default: 5 minutes
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	size := mc.sizeOf(value) + entryOverhead
	entry := &cacheEntry[V]{
		Value:     value,
		ExpiresAt: mc.now().Add(ttl),
		Key:       key,
		Size:      size,
	}

	if element, exists := mc.store[key]; exists {
		mc.size -= element.Value.(*cacheEntry[V]).Size
		element.Value = entry
		mc.lruList.MoveToFront(element)
		mc.size += size

		log.Debug().
			Str("key", key).
			Dur("ttl", ttl).
			Int64("size_bytes", size).
			Msg("Updated cache entry")

		return nil
	}

	for mc.size+size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	mc.store[key] = mc.lruList.PushFront(entry)
	mc.size += size

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", size).
		Msg("Cached value")

	return nil
}

// Delete removes a cached value.
func (mc *MemoryCache[V]) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
		log.Debug().Str("key", key).Msg("Deleted from cache")
	}

	return nil
}

// Close stops the background cleanup goroutine.
func (mc *MemoryCache[V]) Close() {
	mc.cancel()
	log.Debug().Msg("Cache closed")
}

// Len returns the number of live and not yet swept entries.
func (mc *MemoryCache[V]) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lruList.Len()
}

// must be called with lock held
func (mc *MemoryCache[V]) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry[V])
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= entry.Size
}

// must be called with lock held
func (mc *MemoryCache[V]) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	key := element.Value.(*cacheEntry[V]).Key
	mc.removeElement(element)

	log.Debug().Str("key", key).Msg("Evicted from cache (LRU)")
}

func (mc *MemoryCache[V]) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := mc.now()

			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				if now.After(element.Value.(*cacheEntry[V]).ExpiresAt) {
					mc.removeElement(element)
				}
			}
			mc.mu.Unlock()
		case <-mc.ctx.Done():
			log.Debug().Msg("Cache cleanup routine stopped")
			return
		}
	}
}

// Stats returns cache statistics including hit rate.
func (mc *MemoryCache[V]) Stats() map[string]interface{} {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	hitRate := 0.0
	total := mc.hits + mc.misses
	if total > 0 {
		hitRate = float64(mc.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"entries":     mc.lruList.Len(),
		"size_bytes":  mc.size,
		"max_size":    mc.maxSize,
		"utilization": float64(mc.size) / float64(mc.maxSize) * 100,
		"hits":        mc.hits,
		"misses":      mc.misses,
		"hit_rate":    hitRate,
	}
}
