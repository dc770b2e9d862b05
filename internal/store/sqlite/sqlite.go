// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/pkg/models"
)

// Store is a SQLite-backed catalog store.
type Store struct {
	db *sql.DB
}

// Open opens dsn and applies the schema. An empty dsn opens a private
// in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer and :memory: is per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := addSearchKeys(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to add search keys: %w", err)
	}

	log.Debug().Str("dsn", dsn).Msg("SQLite store ready")
	return &Store{db: db}, nil
}

// addSearchKeys upgrades a products table created before title_key and
// source_key existed and fills them for the stored rows.
func addSearchKeys(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('products') WHERE name = 'title_key'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}

	for _, stmt := range []string{
		`ALTER TABLE products ADD COLUMN title_key TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE products ADD COLUMN source_key TEXT NOT NULL DEFAULT ''`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT id, title, coalesce(source_id, '') FROM products`)
	if err != nil {
		return err
	}
	type keys struct{ id, title, source string }
	var all []keys
	for rows.Next() {
		var k keys
		if err := rows.Scan(&k.id, &k.title, &k.source); err != nil {
			rows.Close()
			return err
		}
		all = append(all, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range all {
		_, err := db.ExecContext(ctx, `UPDATE products SET title_key = ?, source_key = ? WHERE id = ?`,
			store.SearchKey(k.title), store.SearchKey(k.source), k.id)
		if err != nil {
			return err
		}
	}
	log.Info().Int("products", len(all)).Msg("Added product search keys")
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// EnsureNavigation returns the navigation with slug, creating it if absent.
func (s *Store) EnsureNavigation(ctx context.Context, slug, title string) (*models.Navigation, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO navigations (id, title, slug, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slug) DO NOTHING`,
		uuid.NewString(), title, slug, nanos(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure navigation %s: %w", slug, err)
	}

	var nav models.Navigation
	err = s.db.QueryRowContext(ctx,
		`SELECT id, title, slug FROM navigations WHERE slug = ?`, slug).
		Scan(&nav.ID, &nav.Title, &nav.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load navigation %s: %w", slug, err)
	}
	return &nav, nil
}

const categoryColumns = `id, navigation_id, parent_id, title, slug, product_count, last_scraped_at, created_at, updated_at`

func scanCategory(row scanner) (*models.Category, error) {
	var (
		c                models.Category
		parent           sql.NullString
		scraped          sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&c.ID, &c.NavigationID, &parent, &c.Title, &c.Slug, &c.ProductCount, &scraped, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ParentID = stringPtr(parent)
	c.LastScrapedAt = nullTime(scraped)
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	return &c, nil
}

// EnsureCategory inserts the category when (navigation, slug) is new and
// returns the stored row either way.
func (s *Store) EnsureCategory(ctx context.Context, c store.CategoryInsert) (*models.Category, error) {
	at := nanos(c.At)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, navigation_id, parent_id, title, slug, product_count, last_scraped_at, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?, 0, NULL, ?, ?)
		 ON CONFLICT(navigation_id, slug) DO NOTHING`,
		uuid.NewString(), c.NavigationID, c.Title, c.Slug, at, at)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure category %s: %w", c.Slug, err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE navigation_id = ? AND slug = ?`,
		c.NavigationID, c.Slug)
	cat, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", c.Slug, err)
	}
	return cat, nil
}

// UpsertCategories writes each seeded category independently.
func (s *Store) UpsertCategories(ctx context.Context, cs []store.CategoryUpsert) (store.BulkResult, error) {
	var res store.BulkResult
	for _, c := range cs {
		id := uuid.NewString()
		at := nanos(c.At)

		var got string
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO categories (id, navigation_id, parent_id, title, slug, product_count, last_scraped_at, created_at, updated_at)
			 VALUES (?, ?, NULL, ?, ?, 0, NULL, ?, ?)
			 ON CONFLICT(navigation_id, slug) DO UPDATE SET
				title = excluded.title,
				updated_at = excluded.updated_at
			 RETURNING id`,
			id, c.NavigationID, c.Title, c.Slug, at, at).Scan(&got)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Str("slug", c.Slug).Msg("Category upsert failed")
			res.Failed++
			continue
		}
		if got == id {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// FindCategoryBySlug returns the category with slug.
func (s *Store) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = ? ORDER BY created_at LIMIT 1`, slug)
	c, err := scanCategory(row)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to find category %s: %w", slug, err)
	}
	return c, err
}

// ListCategories returns every category sorted by title.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY title COLLATE NOCASE, slug`)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// MarkCategoryScraped overwrites product_count and last_scraped_at.
func (s *Store) MarkCategoryScraped(ctx context.Context, id string, productCount int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET product_count = ?, last_scraped_at = ?, updated_at = ? WHERE id = ?`,
		productCount, nanos(at), nanos(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark category %s scraped: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// The membership set only grows: the category id is appended unless it is
// empty or already present.
const productUpsertTail = `
	DO UPDATE SET
		title = excluded.title,
		title_key = excluded.title_key,
		price = excluded.price,
		currency = excluded.currency,
		image_url = excluded.image_url,
		last_scraped_at = excluded.last_scraped_at,
		updated_at = excluded.updated_at,
		category_ids = CASE
			WHEN ?10 = '' OR EXISTS (SELECT 1 FROM json_each(products.category_ids) WHERE value = ?10)
			THEN products.category_ids
			ELSE json_insert(products.category_ids, '$[#]', ?10)
		END
	RETURNING id`

const productInsertHead = `
	INSERT INTO products (id, source_id, source_url, slug, title, price, currency, image_url, category_ids, last_scraped_at, created_at, updated_at, title_key, source_key)
	VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?11, ?11, ?11, ?12, ?13)`

var (
	upsertBySourceID  = productInsertHead + ` ON CONFLICT(source_id)` + productUpsertTail
	upsertBySourceURL = productInsertHead + ` ON CONFLICT(source_url)` + productUpsertTail
)

// A row matched by URL keeps its own source id; one without a source id
// takes the incoming one.
const updateMatchedProduct = `
	UPDATE products SET
		source_key = CASE WHEN source_id IS NULL THEN ?2 ELSE source_key END,
		source_id = coalesce(source_id, ?1),
		title = ?3,
		title_key = ?4,
		price = ?5,
		currency = ?6,
		image_url = ?7,
		last_scraped_at = ?8,
		updated_at = ?8,
		category_ids = CASE
			WHEN ?9 = '' OR EXISTS (SELECT 1 FROM json_each(products.category_ids) WHERE value = ?9)
			THEN products.category_ids
			ELSE json_insert(products.category_ids, '$[#]', ?9)
		END
	WHERE id = ?10`

// matchProduct finds the row p refers to: by source id first, then by URL.
const matchProduct = `
	SELECT id FROM products
	WHERE source_id = ?1 OR source_url = ?2
	ORDER BY source_id = ?1 DESC
	LIMIT 1`

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
	categories, err := json.Marshal(initial)
	if err != nil {
		return false, err
	}

	sourceID := sql.NullString{String: p.SourceID, Valid: p.SourceID != ""}
	currency := p.Currency
	if currency == "" {
		currency = "GBP"
	}
	titleKey := store.SearchKey(p.Title)
	sourceKey := store.SearchKey(p.SourceID)
	at := nanos(p.LastScrapedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, matchProduct, sourceID, p.SourceURL).Scan(&existing)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, updateMatchedProduct,
			sourceID, sourceKey, p.Title, titleKey, p.Price, currency,
			nullString(p.ImageURL), at, p.CategoryID, existing)
		if err != nil {
			return false, err
		}
		return false, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	query := upsertBySourceID
	if !sourceID.Valid {
		query = upsertBySourceURL
	}
	id := uuid.NewString()
	var got string
	err = tx.QueryRowContext(ctx, query,
		id, sourceID, p.SourceURL, p.Slug, p.Title, p.Price, currency,
		nullString(p.ImageURL), string(categories), p.CategoryID, at, titleKey, sourceKey,
	).Scan(&got)
	if err != nil {
		return false, err
	}
	return got == id, tx.Commit()
}

const productColumns = `id, source_id, source_url, slug, title, price, currency, image_url, category_ids, last_scraped_at, created_at, updated_at`

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p                models.Product
		sourceID, image  sql.NullString
		categories       string
		scraped          sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&p.ID, &sourceID, &p.SourceURL, &p.Slug, &p.Title, &p.Price, &p.Currency,
		&image, &categories, &scraped, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.SourceID = sourceID.String
	p.ImageURL = stringPtr(image)
	if err := json.Unmarshal([]byte(categories), &p.CategoryIDs); err != nil {
		return nil, fmt.Errorf("invalid category_ids for %s: %w", p.ID, err)
	}
	if p.CategoryIDs == nil {
		p.CategoryIDs = []string{}
	}
	p.LastScrapedAt = nullTime(scraped)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

// FindProductBySlug returns the product whose URL ends in slug.
func (s *Store) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = ? ORDER BY created_at LIMIT 1`, slug)
	p, err := scanProduct(row)
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
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(products.category_ids) WHERE value = ?)`)
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + store.EscapeLike(store.SearchKey(q)) + "%"
		conds = append(conds, `(title_key LIKE ? ESCAPE '\' OR source_key LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindProducts returns a sorted window of products matching q.Filter.
func (s *Store) FindProducts(ctx context.Context, q store.ProductQuery) ([]models.Product, error) {
	where, args := whereClause(q.Filter)

	order := ` ORDER BY last_scraped_at IS NULL, last_scraped_at DESC, id`
	if q.Sort == store.SortTitle {
		order = ` ORDER BY title COLLATE NOCASE, id`
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(q.Skip, 0))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+where+order+` LIMIT ? OFFSET ?`, args...)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n); err != nil {
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
	at := nanos(sum.LastScrapedAt)
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET title = ?, title_key = ?, price = ?, currency = ?, image_url = ?, last_scraped_at = ?, updated_at = ?
		 WHERE id = ?`,
		sum.Title, store.SearchKey(sum.Title), sum.Price, currency, nullString(sum.ImageURL), at, at, id)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindProductDetail returns the detail record of a product.
func (s *Store) FindProductDetail(ctx context.Context, productID string) (*models.ProductDetail, error) {
	var (
		d                           models.ProductDetail
		description, author, series sql.NullString
		ratings, rrp                sql.NullFloat64
		specs, images, conditions   string
		scraped                     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT product_id, description, specs, ratings_avg, reviews_count, author, image_urls, conditions, in_stock, rrp, series, scraped_at
		 FROM product_details WHERE product_id = ?`, productID).
		Scan(&d.ProductID, &description, &specs, &ratings, &d.ReviewsCount, &author, &images, &conditions, &d.InStock, &rrp, &series, &scraped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find detail of %s: %w", productID, err)
	}

	d.Description = stringPtr(description)
	d.Author = stringPtr(author)
	d.Series = stringPtr(series)
	d.RatingsAvg = floatPtr(ratings)
	d.RRP = floatPtr(rrp)
	d.ScrapedAt = fromNanos(scraped)
	if err := unmarshalColumns(
		column{specs, &d.Specs},
		column{images, &d.ImageURLs},
		column{conditions, &d.Conditions},
	); err != nil {
		return nil, fmt.Errorf("invalid detail json for %s: %w", productID, err)
	}
	return &d, nil
}

// ReplaceProductDetail overwrites the whole detail record of a product.
func (s *Store) ReplaceProductDetail(ctx context.Context, d *models.ProductDetail) error {
	specs, err := json.Marshal(orEmptyMap(d.Specs))
	if err != nil {
		return err
	}
	images, err := json.Marshal(orEmpty(d.ImageURLs))
	if err != nil {
		return err
	}
	conditions, err := json.Marshal(orEmpty(d.Conditions))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO product_details (product_id, description, specs, ratings_avg, reviews_count, author, image_urls, conditions, in_stock, rrp, series, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET
			description = excluded.description,
			specs = excluded.specs,
			ratings_avg = excluded.ratings_avg,
			reviews_count = excluded.reviews_count,
			author = excluded.author,
			image_urls = excluded.image_urls,
			conditions = excluded.conditions,
			in_stock = excluded.in_stock,
			rrp = excluded.rrp,
			series = excluded.series,
			scraped_at = excluded.scraped_at`,
		d.ProductID, nullString(d.Description), string(specs), nullFloat(d.RatingsAvg), d.ReviewsCount,
		nullString(d.Author), string(images), string(conditions), d.InStock, nullFloat(d.RRP),
		nullString(d.Series), nanos(d.ScrapedAt))
	if err != nil {
		return fmt.Errorf("failed to save detail of %s: %w", d.ProductID, err)
	}
	return nil
}

// DeleteProductDetail removes a product's detail. A missing detail is not an error.
func (s *Store) DeleteProductDetail(ctx context.Context, productID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM product_details WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("failed to delete detail of %s: %w", productID, err)
	}
	return nil
}

type column struct {
	raw string
	dst any
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return err
		}
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// CreateJob stores a new job. An empty ID is generated.
func (s *Store) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_jobs (id, target_url, target_type, status, started_at, finished_at, error_log, item_count)
		 VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)`,
		job.ID, job.TargetURL, string(job.TargetType), string(job.Status), nanos(job.StartedAt), job.ItemCount)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// FinishJob records the outcome of a job.
func (s *Store) FinishJob(ctx context.Context, id string, status models.JobStatus, itemCount int, errLog *string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_jobs SET status = ?, item_count = ?, error_log = ?, finished_at = ? WHERE id = ?`,
		string(status), itemCount, nullString(errLog), nanos(at), id)
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListJobs returns up to limit jobs, most recent first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_url, target_type, status, started_at, finished_at, error_log, item_count
		 FROM scrape_jobs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.ScrapeJob{}
	for rows.Next() {
		var (
			j                  models.ScrapeJob
			targetType, status string
			started            int64
			finished           sql.NullInt64
			errLog             sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.TargetURL, &targetType, &status, &started, &finished, &errLog, &j.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.TargetType = models.TargetType(targetType)
		j.Status = models.JobStatus(status)
		j.StartedAt = fromNanos(started)
		j.FinishedAt = nullTime(finished)
		j.ErrorLog = stringPtr(errLog)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

var _ store.Store = (*Store)(nil)
