// Package catalog serves the product catalog cache-aside: reads come from the
// store, and stale or missing entities are scraped and merged on demand.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/internal/lock"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/internal/transport"
	"github.com/law-makers/catalog/pkg/models"
)

var tracer = otel.Tracer("catalog/service")

// Defaults for Options.
const (
	DefaultRefreshGrace = 10 * time.Second
	DefaultLockTTL      = 2 * time.Minute
)

// Source scrapes the upstream site.
type Source interface {
	HomeURL() string
	CategoryURL(slug string, page int) string
	ProductURL(slug string) string

	Categories(ctx context.Context) ([]extract.CategoryRecord, error)
	CategoryProducts(ctx context.Context, slug string) (extract.ListPage, error)
	Product(ctx context.Context, slug string) (extract.Detail, error)
	ScrapeBatch(ctx context.Context, slugs []string, opts scraper.BatchOptions) <-chan scraper.Result
	HealthCheck(ctx context.Context) scraper.Health
}

// Options configures a Service.
type Options struct {
	Store  store.Store
	Source Source
	// Locker coordinates refreshes across replicas. Nil means single replica.
	Locker lock.Locker

	CategoryMaxAge time.Duration
	ProductMaxAge  time.Duration
	// RefreshGrace is how long a shared refresh keeps running after the
	// caller that started it has gone away.
	RefreshGrace time.Duration
	LockTTL      time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

// Service implements the catalog operations.
type Service struct {
	store  store.Store
	source Source
	locker lock.Locker
	opts   Options
	group  singleflight.Group
}

// New creates a Service. Zero durations take their defaults.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if opts.Source == nil {
		return nil, errors.New("catalog: source is required")
	}
	if opts.Locker == nil {
		opts.Locker = lock.Noop{}
	}
	if opts.CategoryMaxAge <= 0 {
		opts.CategoryMaxAge = DefaultMaxAge
	}
	if opts.ProductMaxAge <= 0 {
		opts.ProductMaxAge = DefaultMaxAge
	}
	if opts.RefreshGrace <= 0 {
		opts.RefreshGrace = DefaultRefreshGrace
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:  opts.Store,
		source: opts.Source,
		locker: opts.Locker,
		opts:   opts,
	}, nil
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// GetAllCategories returns every category sorted by title. An empty store is
// seeded from the home page first.
func (s *Service) GetAllCategories(ctx context.Context) ([]models.Category, error) {
	ctx, span := tracer.Start(ctx, "GetAllCategories")
	defer span.End()

	n, err := s.store.CountCategories(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		log.Info().Msg("No categories stored, seeding from the home page")
		err := s.coalesce(ctx, "navigation:"+models.DefaultNavigationSlug, s.seedCategories)
		if err != nil && !errors.Is(err, errScrapedElsewhere) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fail(span, err)
			return nil, upstreamUnavailable("failed to seed categories", err)
		}
	}

	return s.store.ListCategories(ctx)
}

// GetCategory returns the category and one page of its products, scraping
// the listing first when the category is stale or missing.
func (s *Service) GetCategory(ctx context.Context, slug string, page, limit int) (*CategoryWithProducts, error) {
	return s.category(ctx, slug, page, limit, false)
}

// RefreshCategory scrapes the category regardless of freshness and returns
// its first page.
func (s *Service) RefreshCategory(ctx context.Context, slug string) (*CategoryWithProducts, error) {
	return s.category(ctx, slug, 1, DefaultLimit, true)
}

func (s *Service) category(ctx context.Context, slug string, page, limit int, force bool) (*CategoryWithProducts, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, newError(CodeInvalidArgument, "category slug is required", nil)
	}

	ctx, span := tracer.Start(ctx, "GetCategory", trace.WithAttributes(
		attribute.String("catalog.slug", slug),
		attribute.Bool("catalog.force", force),
	))
	defer span.End()

	cat, err := s.findCategory(ctx, slug)
	if err != nil {
		return nil, err
	}
	state := Freshness(cat != nil, lastScraped(cat), s.now(), s.opts.CategoryMaxAge)
	span.SetAttributes(attribute.String("catalog.state", state.String()))

	if force || state != Fresh {
		log.Info().Str("category", slug).Str("state", state.String()).Bool("force", force).Msg("Scraping category")

		err := s.coalesce(scrapeContext(ctx, force), scrapeKey("category", slug, force), func(ctx context.Context) error {
			return s.scrapeCategory(ctx, slug)
		})
		waited := errors.Is(err, errScrapedElsewhere)
		if waited {
			err = nil
		}
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && cat == nil:
			fail(span, err)
			return nil, fetchFailure("category", slug, err)
		case err != nil:
			log.Warn().Err(err).Str("category", slug).Msg("Scrape failed, serving stale category")
		default:
			if cat, err = s.findCategory(ctx, slug); err != nil {
				return nil, err
			}
			if cat == nil && waited {
				return nil, upstreamUnavailable(fmt.Sprintf("category %q still missing after another replica scraped it", slug), nil)
			}
			if cat == nil {
				return nil, notFound("category %q not found after scraping", slug)
			}
		}
	}

	return s.categoryPage(ctx, cat, page, limit)
}

func (s *Service) categoryPage(ctx context.Context, cat *models.Category, page, limit int) (*CategoryWithProducts, error) {
	page, limit = NormalizePage(page, limit)
	items, pg, err := s.findPage(ctx, store.ProductFilter{CategoryID: cat.ID}, page, limit)
	if err != nil {
		return nil, err
	}
	return &CategoryWithProducts{
		Category: categoryView(cat),
		Products: Paginated[ProductSummary]{Items: items, Pagination: pg},
	}, nil
}

// findPage runs the window query and the count concurrently.
func (s *Service) findPage(ctx context.Context, filter store.ProductFilter, page, limit int) ([]ProductSummary, Pagination, error) {
	var (
		products []models.Product
		total    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.store.FindProducts(gctx, store.ProductQuery{
			Filter: filter,
			Sort:   store.SortRecent,
			Skip:   (page - 1) * limit,
			Limit:  limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountProducts(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Pagination{}, err
	}
	return productSummaries(products), NewPagination(total, page, limit), nil
}

// GetProduct returns the product with its detail, scraping the detail page
// when the product is missing or stale or has no detail yet.
func (s *Service) GetProduct(ctx context.Context, slug string) (*ProductWithDetail, error) {
	return s.product(ctx, slug, false)
}

// RefreshProduct discards the stored detail and scrapes the product again.
func (s *Service) RefreshProduct(ctx context.Context, slug string) (*ProductWithDetail, error) {
	return s.product(ctx, slug, true)
}

func (s *Service) product(ctx context.Context, slug string, force bool) (*ProductWithDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, newError(CodeInvalidArgument, "product slug is required", nil)
	}

	ctx, span := tracer.Start(ctx, "GetProduct", trace.WithAttributes(
		attribute.String("catalog.slug", slug),
		attribute.Bool("catalog.force", force),
	))
	defer span.End()

	p, err := s.findProduct(ctx, slug)
	if err != nil {
		return nil, err
	}
	if force && p != nil {
		if err := s.store.DeleteProductDetail(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	var detail *models.ProductDetail
	if p != nil {
		if detail, err = s.findDetail(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	var scraped *time.Time
	if p != nil {
		scraped = p.LastScrapedAt
	}
	state := Freshness(p != nil, scraped, s.now(), s.opts.ProductMaxAge)
	span.SetAttributes(
		attribute.String("catalog.state", state.String()),
		attribute.Bool("catalog.has_detail", detail != nil),
	)

	if force || state != Fresh || detail == nil {
		log.Info().Str("product", slug).Str("state", state.String()).Bool("has_detail", detail != nil).Msg("Scraping product")

		err := s.coalesce(scrapeContext(ctx, force), scrapeKey("product", slug, force), func(ctx context.Context) error {
			return s.scrapeProduct(ctx, slug)
		})
		waited := errors.Is(err, errScrapedElsewhere)
		if waited {
			err = nil
		}
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && p == nil:
			fail(span, err)
			return nil, fetchFailure("product", slug, err)
		case err != nil:
			log.Warn().Err(err).Str("product", slug).Msg("Scrape failed, serving stale product")
		default:
			if p, err = s.findProduct(ctx, slug); err != nil {
				return nil, err
			}
			if p == nil && waited {
				return nil, upstreamUnavailable(fmt.Sprintf("product %q still missing after another replica scraped it", slug), nil)
			}
			if p == nil {
				return nil, notFound("product %q not found after scraping", slug)
			}
			if detail, err = s.findDetail(ctx, p.ID); err != nil {
				return nil, err
			}
		}
	}

	return productWithDetail(p, detail), nil
}

// SearchProducts matches query against product titles and source ids,
// most recently scraped first.
func (s *Service) SearchProducts(ctx context.Context, query string, page, limit int) (*Paginated[ProductSummary], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newError(CodeInvalidArgument, "search query is required", nil)
	}

	ctx, span := tracer.Start(ctx, "SearchProducts", trace.WithAttributes(attribute.String("catalog.query", query)))
	defer span.End()

	page, limit = NormalizePage(page, limit)
	items, pg, err := s.findPage(ctx, store.ProductFilter{Query: query}, page, limit)
	if err != nil {
		return nil, err
	}
	return &Paginated[ProductSummary]{Items: items, Pagination: pg}, nil
}

// ListJobs returns recent scrape jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error) {
	return s.store.ListJobs(ctx, limit)
}

// Health checks the store and fetches the upstream home page.
func (s *Service) Health(ctx context.Context) scraper.Health {
	if err := s.store.Ping(ctx); err != nil {
		return scraper.Health{Message: fmt.Sprintf("Store unavailable: %v", err)}
	}
	return s.source.HealthCheck(ctx)
}

func (s *Service) seedCategories(ctx context.Context) error {
	return s.runJob(ctx, models.TargetNavigation, s.source.HomeURL(), func(ctx context.Context) (int, error) {
		records, err := s.source.Categories(ctx)
		if err != nil {
			return 0, err
		}
		if len(records) == 0 {
			return 0, errors.New("home page listed no categories")
		}
		res, err := s.MergeCategories(ctx, records)
		return res.Inserted + res.Updated, err
	})
}

func (s *Service) scrapeCategory(ctx context.Context, slug string) error {
	return s.runJob(ctx, models.TargetCategory, s.source.CategoryURL(slug, 1), func(ctx context.Context) (int, error) {
		list, err := s.source.CategoryProducts(ctx, slug)
		if err != nil {
			return 0, err
		}
		res, err := s.MergeCategoryProducts(ctx, slug, list)
		return res.Inserted + res.Updated, err
	})
}

func (s *Service) scrapeProduct(ctx context.Context, slug string) error {
	return s.runJob(ctx, models.TargetProduct, s.source.ProductURL(slug), func(ctx context.Context) (int, error) {
		d, err := s.source.Product(ctx, slug)
		if err != nil {
			return 0, err
		}
		saved, err := s.MergeProductDetail(ctx, slug, d)
		if !saved {
			return 0, err
		}
		return 1, err
	})
}

// scrapeContext makes a forced refresh bypass the page cache.
func scrapeContext(ctx context.Context, force bool) context.Context {
	if force {
		return transport.WithNoCache(ctx)
	}
	return ctx
}

// scrapeKey keeps forced refreshes from joining a cache-served read.
func scrapeKey(kind, slug string, force bool) string {
	if force {
		return "refresh:" + kind + ":" + slug
	}
	return kind + ":" + slug
}

func (s *Service) findCategory(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.store.FindCategoryBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (s *Service) findProduct(ctx context.Context, slug string) (*models.Product, error) {
	p, err := s.store.FindProductBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *Service) findDetail(ctx context.Context, productID string) (*models.ProductDetail, error) {
	d, err := s.store.FindProductDetail(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

func lastScraped(c *models.Category) *time.Time {
	if c == nil {
		return nil
	}
	return c.LastScrapedAt
}

// fetchFailure is the error for a scrape that failed with nothing cached.
// An upstream 404 means the entity does not exist.
func fetchFailure(kind, slug string, err error) *Error {
	if errors.Is(err, transport.ErrNotFound) {
		return newError(CodeNotFound, fmt.Sprintf("%s %q not found upstream", kind, slug), err)
	}
	return upstreamUnavailable(fmt.Sprintf("failed to scrape %s %q", kind, slug), err)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
