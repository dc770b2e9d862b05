// Package store persists the catalog.
//
// Every mutation is a single-statement natural-key upsert, so callers never
// need explicit locks. Bulk writes are unordered and best-effort: a failing
// item is logged and counted, and the rest of the batch still runs.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/law-makers/catalog/pkg/models"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// BulkResult counts the outcome of an unordered bulk write.
type BulkResult struct {
	Inserted int
	Updated  int
	Failed   int
}

// Add accumulates another result.
func (r *BulkResult) Add(other BulkResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Failed += other.Failed
}

// CategoryInsert creates a category if it does not exist. Nothing is changed
// on an existing row.
type CategoryInsert struct {
	NavigationID string
	Slug         string
	Title        string
	At           time.Time
}

// CategoryUpsert refreshes a seeded category. Title is always set;
// product_count and parent_id are only written on insert.
type CategoryUpsert struct {
	NavigationID string
	Slug         string
	Title        string
	At           time.Time
}

// ProductUpsert writes one product. An existing row is matched by SourceID
// first and then by SourceURL, so a product first stored from its detail page
// is found again by its listing entry.
//
// SourceURL and Slug are insert-only. SourceID is insert-only too, except that
// a row stored without one takes it. Title, Price, Currency,
// ImageURL and LastScrapedAt are always set. A non-empty CategoryID is
// unioned into the product's membership set.
type ProductUpsert struct {
	SourceID      string
	SourceURL     string
	Slug          string
	Title         string
	Price         float64
	Currency      string
	ImageURL      *string
	CategoryID    string
	LastScrapedAt time.Time
}

// ProductSummary is the part of a product refreshed from its detail page.
type ProductSummary struct {
	Title         string
	Price         float64
	Currency      string
	ImageURL      *string
	LastScrapedAt time.Time
}

// ProductFilter narrows product lookups. Zero fields match everything.
type ProductFilter struct {
	// CategoryID matches products whose membership set contains it.
	CategoryID string
	// Query is a case-insensitive substring of the title or source id.
	Query string
}

// ProductSort orders product lists.
type ProductSort int

const (
	// SortRecent orders by last_scraped_at descending, never-scraped last.
	SortRecent ProductSort = iota
	// SortTitle orders by title ascending.
	SortTitle
)

// ProductQuery is a filtered, sorted window over products.
type ProductQuery struct {
	Filter ProductFilter
	Sort   ProductSort
	Skip   int
	Limit  int
}

// Store is the persistence boundary of the catalog.
type Store interface {
	// EnsureNavigation returns the navigation with slug, creating it if absent.
	EnsureNavigation(ctx context.Context, slug, title string) (*models.Navigation, error)

	EnsureCategory(ctx context.Context, c CategoryInsert) (*models.Category, error)
	UpsertCategories(ctx context.Context, cs []CategoryUpsert) (BulkResult, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	// ListCategories returns every category sorted by title.
	ListCategories(ctx context.Context) ([]models.Category, error)
	CountCategories(ctx context.Context) (int, error)
	// MarkCategoryScraped overwrites product_count and last_scraped_at.
	MarkCategoryScraped(ctx context.Context, id string, productCount int, at time.Time) error

	UpsertProducts(ctx context.Context, ps []ProductUpsert) (BulkResult, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindProducts(ctx context.Context, q ProductQuery) ([]models.Product, error)
	CountProducts(ctx context.Context, f ProductFilter) (int, error)
	UpdateProductSummary(ctx context.Context, id string, s ProductSummary) error

	FindProductDetail(ctx context.Context, productID string) (*models.ProductDetail, error)
	// ReplaceProductDetail overwrites the whole detail record of a product.
	ReplaceProductDetail(ctx context.Context, d *models.ProductDetail) error
	DeleteProductDetail(ctx context.Context, productID string) error

	CreateJob(ctx context.Context, job *models.ScrapeJob) error
	FinishJob(ctx context.Context, id string, status models.JobStatus, itemCount int, errLog *string, at time.Time) error
	// ListJobs returns the most recent jobs first.
	ListJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error)

	Ping(ctx context.Context) error
	Close() error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchKey case-folds s for substring search.
func SearchKey(s string) string {
	return strings.ToLower(s)
}

// EscapeLike escapes LIKE wildcards in q with a backslash.
func EscapeLike(q string) string {
	return likeEscaper.Replace(q)
}
