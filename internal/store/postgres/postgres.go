// Package postgres implements store.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS navigations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id              TEXT PRIMARY KEY,
	navigation_id   TEXT NOT NULL REFERENCES navigations(id),
	parent_id       TEXT REFERENCES categories(id),
	title           TEXT NOT NULL,
	slug            TEXT NOT NULL,
	product_count   INTEGER NOT NULL DEFAULT 0,
	last_scraped_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (navigation_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_categories_slug ON categories(slug);

CREATE TABLE IF NOT EXISTS products (
	id              TEXT PRIMARY KEY,
	source_id       TEXT UNIQUE,
	source_url      TEXT NOT NULL UNIQUE,
	slug            TEXT NOT NULL,
	title           TEXT NOT NULL,
	price           DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	currency        TEXT NOT NULL DEFAULT 'GBP',
	image_url       TEXT,
	category_ids    TEXT[] NOT NULL DEFAULT '{}',
	last_scraped_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_slug ON products(slug);
CREATE INDEX IF NOT EXISTS idx_products_last_scraped ON products(last_scraped_at DESC NULLS LAST);
CREATE INDEX IF NOT EXISTS idx_products_category_ids ON products USING GIN (category_ids);

CREATE TABLE IF NOT EXISTS product_details (
	product_id    TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	description   TEXT,
	specs         JSONB NOT NULL DEFAULT '{}',
	ratings_avg   DOUBLE PRECISION CHECK (ratings_avg BETWEEN 0 AND 5),
	reviews_count INTEGER NOT NULL DEFAULT 0,
	author        TEXT,
	image_urls    JSONB NOT NULL DEFAULT '[]',
	conditions    JSONB NOT NULL DEFAULT '[]',
	in_stock      BOOLEAN NOT NULL DEFAULT TRUE,
	rrp           DOUBLE PRECISION,
	series        TEXT,
	scraped_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id          TEXT PRIMARY KEY,
	target_url  TEXT NOT NULL,
	target_type TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error_log   TEXT,
	item_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_started ON scrape_jobs(started_at DESC);
`

// Store is a PostgreSQL-backed catalog store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Debug().Msg("Postgres store ready")
	return &Store{pool: pool}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// EnsureNavigation returns the navigation with slug, creating it if absent.
func (s *Store) EnsureNavigation(ctx context.Context, slug, title string) (*models.Navigation, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO navigations (id, title, slug) VALUES ($1, $2, $3) ON CONFLICT (slug) DO NOTHING`,
		uuid.NewString(), title, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure navigation %s: %w", slug, err)
	}

	var nav models.Navigation
	err = s.pool.QueryRow(ctx, `SELECT id, title, slug FROM navigations WHERE slug = $1`, slug).
		Scan(&nav.ID, &nav.Title, &nav.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load navigation %s: %w", slug, err)
	}
	return &nav, nil
}

const categoryColumns = `id, navigation_id, parent_id, title, slug, product_count, last_scraped_at, created_at, updated_at`

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.NavigationID, &c.ParentID, &c.Title, &c.Slug, &c.ProductCount,
		&c.LastScrapedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// EnsureCategory inserts the category when (navigation, slug) is new and
// returns the stored row either way.
func (s *Store) EnsureCategory(ctx context.Context, c store.CategoryInsert) (*models.Category, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, navigation_id, title, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (navigation_id, slug) DO NOTHING`,
		uuid.NewString(), c.NavigationID, c.Title, c.Slug, c.At)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure category %s: %w", c.Slug, err)
	}

	cat, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE navigation_id = $1 AND slug = $2`,
		c.NavigationID, c.Slug))
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", c.Slug, err)
	}
	return cat, nil
}

// UpsertCategories writes each seeded category independently.
func (s *Store) UpsertCategories(ctx context.Context, cs []store.CategoryUpsert) (store.BulkResult, error) {
	var res store.BulkResult
	for _, c := range cs {
		var inserted bool
		err := s.pool.QueryRow(ctx,
			`INSERT INTO categories (id, navigation_id, title, slug, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)
			 ON CONFLICT (navigation_id, slug) DO UPDATE SET
				title = EXCLUDED.title,
				updated_at = EXCLUDED.updated_at
			 RETURNING (xmax = 0)`,
			uuid.NewString(), c.NavigationID, c.Title, c.Slug, c.At).Scan(&inserted)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Str("slug", c.Slug).Msg("Category upsert failed")
			res.Failed++
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// FindCategoryBySlug returns the category with slug.
func (s *Store) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1 ORDER BY created_at LIMIT 1`, slug))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to find category %s: %w", slug, err)
	}
	return c, err
}

// ListCategories returns every category sorted by title.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY lower(title), slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, *c)
	}
	return cats, rows.Err()
}

// CountCategories returns the number of stored categories.
func (s *Store) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// MarkCategoryScraped overwrites product_count and last_scraped_at.
func (s *Store) MarkCategoryScraped(ctx context.Context, id string, productCount int, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET product_count = $1, last_scraped_at = $2, updated_at = $2 WHERE id = $3`,
		productCount, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark category %s scraped: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// The membership set only grows: the category id is appended unless it is
// empty or already present.
const productUpsertTail = `
	DO UPDATE SET
		title = EXCLUDED.title,
		price = EXCLUDED.price,
		currency = EXCLUDED.currency,
		image_url = EXCLUDED.image_url,
		last_scraped_at = EXCLUDED.last_scraped_at,
		updated_at = EXCLUDED.updated_at,
		category_ids = CASE
			WHEN $10 = '' OR $10 = ANY(products.category_ids) THEN products.category_ids
			ELSE array_append(products.category_ids, $10)
		END
	RETURNING (xmax = 0)`

const productInsertHead = `
	INSERT INTO products (id, source_id, source_url, slug, title, price, currency, image_url, category_ids, last_scraped_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $11, $11, $11)`

var (
	upsertBySourceID  = productInsertHead + ` ON CONFLICT (source_id)` + productUpsertTail
	upsertBySourceURL = productInsertHead + ` ON CONFLICT (source_url)` + productUpsertTail
)

// A row matched by URL keeps its own source id; one without a source id
// takes the incoming one.
const updateMatchedProduct = `
	UPDATE products SET
		source_id = coalesce(source_id, $1),
		title = $2,
		price = $3,
		currency = $4,
		image_url = $5,
		last_scraped_at = $6,
		updated_at = $6,
		category_ids = CASE
			WHEN $7 = '' OR $7 = ANY(category_ids) THEN category_ids
			ELSE array_append(category_ids, $7)
		END
	WHERE id = $8`

// matchProduct finds the row an upsert refers to: by source id first, then by URL.
const matchProduct = `
	SELECT id FROM products
	WHERE source_id = $1 OR source_url = $2
	ORDER BY (source_id = $1) DESC NULLS LAST
	LIMIT 1
	FOR UPDATE`

// UpsertProducts writes each product independently. A failing item is logged
// and counted; only a cancelled context aborts the batch.
func (s *Store) UpsertProducts(ctx context.Context, ps []store.ProductUpsert) (store.BulkResult, error) {
	var res store.BulkResult
	for _, p := range ps {
		inserted, err := s.upsertProduct(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Str("source_id", p.SourceID).Str("url", p.SourceURL).Msg("Product upsert failed")
			res.Failed++
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (s *Store) upsertProduct(ctx context.Context, p store.ProductUpsert) (bool, error) {
	initial := []string{}
	if p.CategoryID != "" {
		initial = append(initial, p.CategoryID)
	}
	query := upsertBySourceID
	var sourceID *string
	if p.SourceID != "" {
		sourceID = &p.SourceID
	} else {
		query = upsertBySourceURL
	}
	currency := p.Currency
	if currency == "" {
		currency = "GBP"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var existing string
	err = tx.QueryRow(ctx, matchProduct, sourceID, p.SourceURL).Scan(&existing)
	switch {
	case err == nil:
		_, err = tx.Exec(ctx, updateMatchedProduct,
			sourceID, p.Title, p.Price, currency, p.ImageURL, p.LastScrapedAt, p.CategoryID, existing)
		if err != nil {
			return false, err
		}
		return false, tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		return false, err
	}

	var inserted bool
	err = tx.QueryRow(ctx, query,
		uuid.NewString(), sourceID, p.SourceURL, p.Slug, p.Title, p.Price, currency,
		p.ImageURL, initial, p.CategoryID, p.LastScrapedAt,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, tx.Commit(ctx)
}

const productColumns = `id, coalesce(source_id, ''), source_url, slug, title, price, currency, image_url, category_ids, last_scraped_at, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.SourceID, &p.SourceURL, &p.Slug, &p.Title, &p.Price, &p.Currency,
		&p.ImageURL, &p.CategoryIDs, &p.LastScrapedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if p.CategoryIDs == nil {
		p.CategoryIDs = []string{}
	}
	return &p, nil
}

// FindProductBySlug returns the product whose URL ends in slug.
func (s *Store) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1 ORDER BY created_at LIMIT 1`, slug))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to find product %s: %w", slug, err)
	}
	return p, err
}

func whereClause(f store.ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		conds = append(conds, fmt.Sprintf(`$%d = ANY(category_ids)`, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+store.EscapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d OR coalesce(source_id, '') ILIKE $%d)`, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindProducts returns a sorted window of products matching q.Filter.
func (s *Store) FindProducts(ctx context.Context, q store.ProductQuery) ([]models.Product, error) {
	where, args := whereClause(q.Filter)

	order := ` ORDER BY last_scraped_at DESC NULLS LAST, id`
	if q.Sort == store.SortTitle {
		order = ` ORDER BY lower(title), id`
	}

	var limit any = "ALL"
	if q.Limit > 0 {
		limit = q.Limit
	}
	args = append(args, max(q.Skip, 0))
	window := fmt.Sprintf(` OFFSET $%d LIMIT %v`, len(args), limit)

	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+where+order+window, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CountProducts counts products matching f.
func (s *Store) CountProducts(ctx context.Context, f store.ProductFilter) (int, error) {
	where, args := whereClause(f)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// UpdateProductSummary refreshes the fields a detail page carries.
func (s *Store) UpdateProductSummary(ctx context.Context, id string, sum store.ProductSummary) error {
	currency := sum.Currency
	if currency == "" {
		currency = "GBP"
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET title = $1, price = $2, currency = $3, image_url = $4, last_scraped_at = $5, updated_at = $5
		 WHERE id = $6`,
		sum.Title, sum.Price, currency, sum.ImageURL, sum.LastScrapedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindProductDetail returns the detail record of a product.
func (s *Store) FindProductDetail(ctx context.Context, productID string) (*models.ProductDetail, error) {
	var d models.ProductDetail
	err := s.pool.QueryRow(ctx,
		`SELECT product_id, description, specs, ratings_avg, reviews_count, author, image_urls, conditions, in_stock, rrp, series, scraped_at
		 FROM product_details WHERE product_id = $1`, productID).
		Scan(&d.ProductID, &d.Description, &d.Specs, &d.RatingsAvg, &d.ReviewsCount, &d.Author,
			&d.ImageURLs, &d.Conditions, &d.InStock, &d.RRP, &d.Series, &d.ScrapedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find detail of %s: %w", productID, err)
	}
	return &d, nil
}

// ReplaceProductDetail overwrites the whole detail record of a product.
func (s *Store) ReplaceProductDetail(ctx context.Context, d *models.ProductDetail) error {
	specs := d.Specs
	if specs == nil {
		specs = map[string]string{}
	}
	images := d.ImageURLs
	if images == nil {
		images = []string{}
	}
	conditions := d.Conditions
	if conditions == nil {
		conditions = []models.Condition{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_details (product_id, description, specs, ratings_avg, reviews_count, author, image_urls, conditions, in_stock, rrp, series, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (product_id) DO UPDATE SET
			description = EXCLUDED.description,
			specs = EXCLUDED.specs,
			ratings_avg = EXCLUDED.ratings_avg,
			reviews_count = EXCLUDED.reviews_count,
			author = EXCLUDED.author,
			image_urls = EXCLUDED.image_urls,
			conditions = EXCLUDED.conditions,
			in_stock = EXCLUDED.in_stock,
			rrp = EXCLUDED.rrp,
			series = EXCLUDED.series,
			scraped_at = EXCLUDED.scraped_at`,
		d.ProductID, d.Description, specs, d.RatingsAvg, d.ReviewsCount, d.Author,
		images, conditions, d.InStock, d.RRP, d.Series, d.ScrapedAt)
	if err != nil {
		return fmt.Errorf("failed to save detail of %s: %w", d.ProductID, err)
	}
	return nil
}

// DeleteProductDetail removes a product's detail. A missing detail is not an error.
func (s *Store) DeleteProductDetail(ctx context.Context, productID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM product_details WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("failed to delete detail of %s: %w", productID, err)
	}
	return nil
}

// CreateJob stores a new job. An empty ID is generated.
func (s *Store) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_jobs (id, target_url, target_type, status, started_at, item_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.TargetURL, string(job.TargetType), string(job.Status), job.StartedAt, job.ItemCount)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// FinishJob records the outcome of a job.
func (s *Store) FinishJob(ctx context.Context, id string, status models.JobStatus, itemCount int, errLog *string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_jobs SET status = $1, item_count = $2, error_log = $3, finished_at = $4 WHERE id = $5`,
		string(status), itemCount, errLog, at, id)
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListJobs returns up to limit jobs, most recent first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_url, target_type, status, started_at, finished_at, error_log, item_count
		 FROM scrape_jobs ORDER BY started_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.ScrapeJob{}
	for rows.Next() {
		var (
			j                  models.ScrapeJob
			targetType, status string
		)
		if err := rows.Scan(&j.ID, &j.TargetURL, &targetType, &status, &j.StartedAt, &j.FinishedAt, &j.ErrorLog, &j.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.TargetType = models.TargetType(targetType)
		j.Status = models.JobStatus(status)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

var _ store.Store = (*Store)(nil)
