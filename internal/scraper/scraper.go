// Package scraper turns site routes into extracted records: it builds the URL,
// fetches it through the guarded transport and runs the matching extractor.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/internal/transport"
)

// DefaultLocale is the storefront locale path segment.
const DefaultLocale = "en-gb"

// Scraper fetches and extracts catalog pages.
type Scraper struct {
	fetcher transport.Fetcher
	ext     *extract.Extractor
	root    string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scraper for baseURL's origin and locale. fetcher should be
// the guarded transport; the scraper itself never retries.
func New(fetcher transport.Fetcher, baseURL, locale string) *Scraper {
	if locale == "" {
		locale = DefaultLocale
	}
	ext := extract.New(baseURL)
	return &Scraper{
		fetcher: fetcher,
		ext:     ext,
		root:    ext.BaseURL() + "/" + strings.Trim(locale, "/"),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// HomeURL returns the localized home page.
func (s *Scraper) HomeURL() string {
	return s.root
}

// CategoryURL returns the listing URL of slug. Page 1 carries no query.
func (s *Scraper) CategoryURL(slug string, page int) string {
	u := s.root + "/collections/" + url.PathEscape(slug)
	if page > 1 {
		u += fmt.Sprintf("?page=%d", page)
	}
	return u
}

// ProductURL returns the detail URL of slug.
func (s *Scraper) ProductURL(slug string) string {
	return s.root + "/products/" + url.PathEscape(slug)
}

// Categories scrapes the home page category tiles.
func (s *Scraper) Categories(ctx context.Context) ([]extract.CategoryRecord, error) {
	page, err := s.fetcher.Fetch(ctx, s.HomeURL(), transport.RouteHome)
	if err != nil {
		return nil, err
	}
	records := s.ext.HomeCategories(page.HTML)
	log.Info().Int("categories", len(records)).Dur("elapsed", page.Elapsed).Msg("Scraped home categories")
	return records, nil
}

// CategoryProducts scrapes the first listing page of slug. An empty listing
// is a successful result.
func (s *Scraper) CategoryProducts(ctx context.Context, slug string) (extract.ListPage, error) {
	page, err := s.fetcher.Fetch(ctx, s.CategoryURL(slug, 1), transport.RouteCategory)
	if err != nil {
		return extract.ListPage{}, err
	}
	list := s.ext.ProductList(page.HTML)
	log.Info().
		Str("category", slug).
		Int("items", len(list.Items)).
		Int("skipped", list.Skipped).
		Dur("elapsed", page.Elapsed).
		Msg("Scraped category listing")
	return list, nil
}

// Product scrapes the detail page of slug. The detail is returned even when
// it lacks a title; callers decide whether it is persistable.
func (s *Scraper) Product(ctx context.Context, slug string) (extract.Detail, error) {
	u := s.ProductURL(slug)
	page, err := s.fetcher.Fetch(ctx, u, transport.RouteProduct)
	if err != nil {
		return extract.Detail{}, err
	}
	pageURL := page.FinalURL
	if pageURL == "" {
		pageURL = u
	}
	detail := s.ext.ProductDetail(page.HTML, pageURL)
	log.Info().
		Str("product", slug).
		Str("source_id", detail.SourceID).
		Int("conditions", len(detail.Conditions)).
		Dur("elapsed", page.Elapsed).
		Msg("Scraped product detail")
	return detail, nil
}

// Health reports whether the site is reachable and still renders categories.
type Health struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// HealthCheck scrapes the home page and reports what it found.
func (s *Scraper) HealthCheck(ctx context.Context) Health {
	records, err := s.Categories(ctx)
	if err != nil {
		return Health{Message: fmt.Sprintf("Connection failed: %v", err)}
	}
	return Health{
		Healthy: len(records) > 0,
		Message: fmt.Sprintf("Connected successfully. Found %d categories.", len(records)),
	}
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
