package transport

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/internal/ratelimit"
	"github.com/law-makers/catalog/internal/retry"
)

var tracer = otel.Tracer("catalog/transport")

// DefaultPageCacheTTL is how long a fetched page is reused.
const DefaultPageCacheTTL = 30 * time.Second

// GuardOptions configures a Guard. Zero values get defaults; a nil Cache or
// Limiter disables that stage.
type GuardOptions struct {
	Policy         *Policy
	Breaker        *Breaker
	Cache          cache.Cache[*Page]
	CacheTTL       time.Duration
	Limiter        ratelimit.RateLimiter
	MaxConcurrency int64
	Retry          retry.Config
}

// Guard wraps a Fetcher with every safety rule that applies to upstream
// traffic. It is the only Fetcher the rest of the module should hold.
type Guard struct {
	inner    Fetcher
	policy   *Policy
	breaker  *Breaker
	cache    cache.Cache[*Page]
	cacheTTL time.Duration
	sem      *semaphore.Weighted
	limiter  ratelimit.RateLimiter
	retry    retry.Config
}

// NewGuard wraps inner.
func NewGuard(inner Fetcher, opts GuardOptions) *Guard {
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy()
	}
	if opts.Breaker == nil {
		opts.Breaker = NewBreaker(DefaultBreakerThreshold, DefaultBreakerRecovery)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultPageCacheTTL
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultConfig()
	}
	opts.Retry.Retryable = Retryable

	return &Guard{
		inner:    inner,
		policy:   opts.Policy,
		breaker:  opts.Breaker,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		sem:      semaphore.NewWeighted(opts.MaxConcurrency),
		limiter:  opts.Limiter,
		retry:    opts.Retry,
	}
}

// Name returns the name of the wrapped fetcher
func (g *Guard) Name() string {
	return g.inner.Name()
}

// Breaker exposes the circuit breaker for health reporting.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Fetch retrieves url through the policy, cache, breaker, concurrency
// ceiling, rate limiter and retry stages, in that order.
func (g *Guard) Fetch(ctx context.Context, url string, route RouteKind) (*Page, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("url", url),
		attribute.String("route", string(route)),
		attribute.String("fetcher", g.inner.Name()),
	)

	if !g.policy.Allowed(url) {
		err := NewFetchError(KindPolicyBlocked, url, "blocked by policy", nil)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if g.cache != nil && !NoCache(ctx) {
		if page, ok := g.cache.Get(url); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return page, nil
		}
	}

	var page *Page
	attempts := 0
	err := retry.WithRetry(ctx, g.retry, func() error {
		attempts++
		p, err := g.attempt(ctx, url, route)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err != nil {
		fe := Classify(url, 0, err)
		span.RecordError(fe)
		span.SetStatus(codes.Error, fe.Error())
		log.Warn().
			Str("url", url).
			Str("kind", string(fe.Kind)).
			Int("status", fe.StatusCode).
			Int("attempts", attempts).
			Msg("Fetch failed")
		// A page gone upstream must not outlive a forced refresh in the cache.
		if g.cache != nil && fe.Kind == KindNotFound {
			if err := g.cache.Delete(url); err != nil {
				log.Debug().Err(err).Str("url", url).Msg("Failed to evict page")
			}
		}
		return nil, fe
	}

	if g.cache != nil {
		if err := g.cache.Set(url, page, g.cacheTTL); err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Failed to cache page")
		}
	}

	return page, nil
}

func (g *Guard) attempt(ctx context.Context, url string, route RouteKind) (*Page, error) {
	// Policy runs on every attempt, not only on entry.
	if !g.policy.Allowed(url) {
		return nil, NewFetchError(KindPolicyBlocked, url, "blocked by policy", nil)
	}
	if !g.breaker.Allow() {
		return nil, NewFetchError(KindBlocked, url, "circuit breaker open", nil)
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, Classify(url, 0, err)
	}
	defer g.sem.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, url); err != nil {
			return nil, Classify(url, 0, err)
		}
	}

	start := time.Now()
	page, err := g.inner.Fetch(ctx, url, route)
	if err != nil {
		fe := Classify(url, 0, err)
		g.breaker.Record(fe)
		return nil, fe
	}
	g.breaker.Record(nil)

	log.Debug().
		Str("url", url).
		Str("route", string(route)).
		Int("status", page.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched page")

	return page, nil
}

// PageSize estimates a cached page's footprint for the LRU cache.
func PageSize(p *Page) int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.HTML) + len(p.URL) + len(p.FinalURL))
}
