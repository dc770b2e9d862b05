// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations.
//
// Implementations control request rates on a per-host basis to avoid
// overwhelming the upstream site.
type RateLimiter interface {
	// Wait blocks until a request for the given URL can proceed.
	// If the context is cancelled before the rate limit allows, an error is returned.
	Wait(ctx context.Context, urlStr string) error
}

// HostLimiter provides per-host token bucket limiting followed by a randomized
// politeness pause, so consecutive requests never arrive at a fixed cadence.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
	minDelay time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewHostLimiter creates a limiter allowing requestsPerMinute per host with the
// given burst, plus a pause drawn uniformly from [minDelay, maxDelay] before
// every request.
func NewHostLimiter(requestsPerMinute float64, burst int, minDelay, maxDelay time.Duration) *HostLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10 // Default: 10 requests/min per host
	}
	if burst <= 0 {
		burst = 1
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerMinute / 60),
		burst:    burst,
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    sleepContext,
	}
}

// Wait blocks until the host's bucket has a token and the politeness pause has elapsed.
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if host := extractHost(urlStr); host != "" {
		if err := hl.getLimiter(host).Wait(ctx); err != nil {
			return err
		}
	}

	return hl.sleep(ctx, hl.politeness())
}

func (hl *HostLimiter) politeness() time.Duration {
	if hl.maxDelay <= 0 {
		return 0
	}
	spread := hl.maxDelay - hl.minDelay
	if spread <= 0 {
		return hl.minDelay
	}
	return hl.minDelay + rand.N(spread)
}

// getLimiter returns or creates a rate limiter for the given host
func (hl *HostLimiter) getLimiter(host string) *rate.Limiter {
	hl.mu.RLock()
	limiter, exists := hl.limiters[host]
	hl.mu.RUnlock()

	if exists {
		return limiter
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := hl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hl.perHost, hl.burst)
	hl.limiters[host] = limiter

	return limiter
}

func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
