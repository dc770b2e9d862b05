// Package transport fetches catalog pages from the upstream site.
//
// Fetchers do the I/O; Guard wraps any Fetcher with the crawl policy, circuit
// breaker, page cache, concurrency ceiling, rate limiting and retries. Nothing
// else in the module talks to the network.
package transport

import (
	"context"
	"strings"
	"time"
)

// RouteKind selects how a page is rendered and what the fetcher waits for.
type RouteKind string

const (
	RouteHome     RouteKind = "home"
	RouteCategory RouteKind = "category"
	RouteProduct  RouteKind = "product"
)

// Page is a fetched and fully rendered HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Route      RouteKind
	FetchedAt  time.Time
	Elapsed    time.Duration
}

// Fetcher is the interface that all page fetchers must implement
type Fetcher interface {
	// Fetch retrieves url and returns its rendered HTML. Failures are
	// returned as *FetchError.
	Fetch(ctx context.Context, url string, route RouteKind) (*Page, error)

	// Name returns the name of the fetcher implementation
	Name() string
}

type noCacheKey struct{}

// WithNoCache marks ctx so the Guard skips cached pages and fetches upstream.
// The fetched page still refreshes the cache.
func WithNoCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey{}, true)
}

// NoCache reports whether ctx was marked by WithNoCache.
func NoCache(ctx context.Context) bool {
	skip, _ := ctx.Value(noCacheKey{}).(bool)
	return skip
}

// challengeTitles are interstitial page titles served instead of content when
// the upstream's bot protection kicks in.
var challengeTitles = []string{"Just a moment", "Access denied", "Attention Required"}

// IsChallengeTitle reports whether title belongs to a bot challenge page.
func IsChallengeTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, t := range challengeTitles {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
