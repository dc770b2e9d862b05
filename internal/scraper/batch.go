package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/extract"
)

// BatchOptions paces a batch detail scrape.
type BatchOptions struct {
	// Size is the number of slugs per batch.
	Size int
	// Delay is the pause after each item; Jitter adds up to that much more.
	// Batch boundaries wait twice Delay.
	Delay  time.Duration
	Jitter time.Duration
}

// DefaultBatchOptions returns the conservative pacing used by the CLI.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Size: 3, Delay: 5 * time.Second, Jitter: 2 * time.Second}
}

// Result is the outcome of scraping one slug.
type Result struct {
	Slug      string
	URL       string
	Detail    *extract.Detail
	Err       error
	ScrapedAt time.Time
}

// ScrapeBatch scrapes slugs one at a time in batches of opts.Size and emits a
// Result per slug in input order. The channel is closed when every slug is
// done or ctx is cancelled; results already emitted stay valid.
func (s *Scraper) ScrapeBatch(ctx context.Context, slugs []string, opts BatchOptions) <-chan Result {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchOptions().Size
	}
	results := make(chan Result, len(slugs))

	go func() {
		defer close(results)

		batches := (len(slugs) + opts.Size - 1) / opts.Size
		for start := 0; start < len(slugs); start += opts.Size {
			end := min(start+opts.Size, len(slugs))
			log.Info().
				Int("batch", start/opts.Size+1).
				Int("batches", batches).
				Msg("Processing product batch")

			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				results <- s.scrapeOne(ctx, slugs[i])

				if i < len(slugs)-1 {
					if err := s.sleep(ctx, opts.Delay+jitter(opts.Jitter)); err != nil {
						return
					}
				}
			}

			if end < len(slugs) {
				if err := s.sleep(ctx, 2*opts.Delay); err != nil {
					return
				}
			}
		}
	}()

	return results
}

// ScrapeProducts runs ScrapeBatch to completion and keys the results by slug.
func (s *Scraper) ScrapeProducts(ctx context.Context, slugs []string, opts BatchOptions) map[string]Result {
	out := make(map[string]Result, len(slugs))
	for r := range s.ScrapeBatch(ctx, slugs, opts) {
		out[r.Slug] = r
	}
	return out
}

func (s *Scraper) scrapeOne(ctx context.Context, slug string) Result {
	r := Result{Slug: slug, URL: s.ProductURL(slug)}
	detail, err := s.Product(ctx, slug)
	r.ScrapedAt = s.now()
	if err != nil {
		log.Warn().Err(err).Str("product", slug).Msg("Batch scrape failed")
		r.Err = err
		return r
	}
	r.Detail = &detail
	return r
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
