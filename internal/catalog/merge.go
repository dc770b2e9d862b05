package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/pkg/models"
)

// ErrSchemaVersion is returned for records produced by a different extractor version.
var ErrSchemaVersion = errors.New("unsupported record schema version")

func checkVersion(v int) error {
	if v != extract.SchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, v, extract.SchemaVersion)
	}
	return nil
}

// SlugToTitle turns "fiction-books" into "Fiction Books".
func SlugToTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func (s *Service) defaultNavigation(ctx context.Context) (*models.Navigation, error) {
	return s.store.EnsureNavigation(ctx, models.DefaultNavigationSlug, models.DefaultNavigationTitle)
}

// MergeCategoryProducts writes one scraped listing of slug. The category is
// created if needed, every item is upserted with the category unioned into its
// membership, and the category's product_count and last_scraped_at are
// overwritten even when the listing is empty.
func (s *Service) MergeCategoryProducts(ctx context.Context, slug string, list extract.ListPage) (store.BulkResult, error) {
	var res store.BulkResult
	if err := checkVersion(list.Version); err != nil {
		return res, err
	}

	now := s.now()
	nav, err := s.defaultNavigation(ctx)
	if err != nil {
		return res, err
	}
	cat, err := s.store.EnsureCategory(ctx, store.CategoryInsert{
		NavigationID: nav.ID,
		Slug:         slug,
		Title:        SlugToTitle(slug),
		At:           now,
	})
	if err != nil {
		return res, err
	}

	ups := make([]store.ProductUpsert, 0, len(list.Items))
	for _, item := range list.Items {
		if err := checkVersion(item.Version); err != nil {
			log.Warn().Err(err).Str("url", item.URL).Msg("Skipping list item")
			res.Failed++
			continue
		}
		ups = append(ups, store.ProductUpsert{
			SourceID:      item.SourceID,
			SourceURL:     item.URL,
			Slug:          item.Slug,
			Title:         item.Title,
			Price:         item.Price,
			Currency:      item.Currency,
			ImageURL:      item.ImageURL,
			CategoryID:    cat.ID,
			LastScrapedAt: now,
		})
	}

	written, err := s.store.UpsertProducts(ctx, ups)
	res.Add(written)
	if err != nil {
		return res, err
	}

	if err := s.store.MarkCategoryScraped(ctx, cat.ID, len(list.Items), now); err != nil {
		return res, err
	}

	log.Info().
		Str("category", slug).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Msg("Merged category products")
	return res, nil
}

// MergeCategories writes the seeded category list under the default
// navigation. Titles are refreshed on every run; product_count and parent are
// only set for new categories and last_scraped_at is left alone, so a seeded
// category stays Stale until its own listing is scraped.
func (s *Service) MergeCategories(ctx context.Context, records []extract.CategoryRecord) (store.BulkResult, error) {
	var res store.BulkResult

	nav, err := s.defaultNavigation(ctx)
	if err != nil {
		return res, err
	}

	now := s.now()
	ups := make([]store.CategoryUpsert, 0, len(records))
	for _, r := range records {
		if err := checkVersion(r.Version); err != nil {
			log.Warn().Err(err).Str("slug", r.Slug).Msg("Skipping category record")
			res.Failed++
			continue
		}
		ups = append(ups, store.CategoryUpsert{
			NavigationID: nav.ID,
			Slug:         r.Slug,
			Title:        r.Title,
			At:           now,
		})
	}

	written, err := s.store.UpsertCategories(ctx, ups)
	res.Add(written)
	if err != nil {
		return res, err
	}

	log.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Msg("Merged categories")
	return res, nil
}

// MergeProductDetail persists a scraped detail page of slug. It reports
// whether anything was written: a detail without a title, URL or slug is
// dropped.
//
// A missing product is created first. The detail record is then replaced
// and, as a separate step, the product summary is refreshed; a failure of the
// second step is logged and the saved detail is kept.
func (s *Service) MergeProductDetail(ctx context.Context, slug string, d extract.Detail) (bool, error) {
	if err := checkVersion(d.Version); err != nil {
		return false, err
	}
	if !d.Valid() {
		log.Debug().Str("product", slug).Msg("Detail page has no title, nothing to save")
		return false, nil
	}

	now := s.now()
	p, err := s.findProduct(ctx, slug)
	if err != nil {
		return false, err
	}
	if p == nil {
		if p, err = s.createProduct(ctx, slug, d); err != nil {
			return false, err
		}
	}

	detail := &models.ProductDetail{
		ProductID:   p.ID,
		Description: d.Description,
		Specs:       d.Specs,
		Author:      d.Author,
		ImageURLs:   d.ImageURLs,
		Conditions:  d.Conditions,
		InStock:     d.InStock,
		RRP:         d.RRP,
		Series:      d.Series,
		ScrapedAt:   now,
	}
	if err := s.store.ReplaceProductDetail(ctx, detail); err != nil {
		return false, err
	}

	err = s.store.UpdateProductSummary(ctx, p.ID, store.ProductSummary{
		Title:         d.Title,
		Price:         d.Price,
		Currency:      d.Currency,
		ImageURL:      d.ImageURL,
		LastScrapedAt: now,
	})
	if err != nil {
		log.Warn().Err(err).Str("product", slug).Msg("Detail saved but product summary update failed")
	}
	return true, nil
}

func (s *Service) createProduct(ctx context.Context, slug string, d extract.Detail) (*models.Product, error) {
	res, err := s.store.UpsertProducts(ctx, []store.ProductUpsert{{
		SourceID:      d.SourceID,
		SourceURL:     d.URL,
		Slug:          slug,
		Title:         d.Title,
		Price:         d.Price,
		Currency:      d.Currency,
		ImageURL:      d.ImageURL,
		LastScrapedAt: s.now(),
	}})
	if err != nil {
		return nil, err
	}
	if res.Failed > 0 {
		return nil, fmt.Errorf("failed to create product %s", slug)
	}

	// The upsert may have matched an existing row by source id or URL, which keeps
	// its original slug.
	for _, candidate := range []string{slug, d.Slug} {
		p, err := s.findProduct(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("product %s not found after create", slug)
}
