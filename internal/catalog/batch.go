package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/pkg/models"
)

// BatchResult is the outcome of one slug in ScrapeProducts.
type BatchResult struct {
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	Success   bool      `json:"success"`
	Saved     bool      `json:"saved"`
	Error     string    `json:"error,omitempty"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// ScrapeProducts scrapes the detail pages of slugs with the batch pacing in
// opts and persists each one. onResult, if set, is called after every slug.
// Cancellation stops the batch; the results gathered so far are returned.
func (s *Service) ScrapeProducts(ctx context.Context, slugs []string, opts scraper.BatchOptions, onResult func(BatchResult)) map[string]BatchResult {
	out := make(map[string]BatchResult, len(slugs))
	started := s.now()

	for r := range s.source.ScrapeBatch(ctx, slugs, opts) {
		res := BatchResult{Slug: r.Slug, URL: r.URL, ScrapedAt: r.ScrapedAt}

		err := r.Err
		if err == nil && r.Detail != nil {
			res.Saved, err = s.MergeProductDetail(ctx, r.Slug, *r.Detail)
		}
		n := 0
		if res.Saved {
			n = 1
		}
		if err != nil {
			res.Error = err.Error()
			log.Warn().Err(err).Str("product", r.Slug).Msg("Batch item failed")
		} else {
			res.Success = true
		}
		s.recordJob(ctx, models.TargetProduct, r.URL, started, n, err)
		started = s.now()

		out[r.Slug] = res
		if onResult != nil {
			onResult(res)
		}
	}

	log.Info().Int("requested", len(slugs)).Int("done", len(out)).Msg("Batch scrape finished")
	return out
}
