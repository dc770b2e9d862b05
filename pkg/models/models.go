// Package models defines the persisted catalog entities shared by the store,
// the catalog service and the HTTP layer.
package models

import "time"

// DefaultNavigationSlug is the navigation every seeded category hangs under.
const (
	DefaultNavigationSlug  = "all-categories"
	DefaultNavigationTitle = "All Categories"
)

// Navigation is a root grouping for categories.
type Navigation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// Category is a product listing on the upstream site.
//
// ProductCount is a cache of how many products carry this category's ID. It is
// overwritten on every successful scrape, never incremented.
type Category struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	NavigationID  string     `json:"navigation_id"`
	ParentID      *string    `json:"parent_id"`
	ProductCount  int        `json:"product_count"`
	LastScrapedAt *time.Time `json:"last_scraped_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Product is a catalog entry keyed by its upstream source id.
type Product struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"source_id"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Price         float64    `json:"price"`
	Currency      string     `json:"currency"`
	ImageURL      *string    `json:"image_url"`
	SourceURL     string     `json:"source_url"`
	CategoryIDs   []string   `json:"category_ids"`
	LastScrapedAt *time.Time `json:"last_scraped_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasCategory reports whether id is in the product's membership set.
func (p *Product) HasCategory(id string) bool {
	for _, c := range p.CategoryIDs {
		if c == id {
			return true
		}
	}
	return false
}

// ConditionType is the normalized condition grade of a product variant.
type ConditionType string

const (
	ConditionNew        ConditionType = "new"
	ConditionLikeNew    ConditionType = "like_new"
	ConditionVeryGood   ConditionType = "very_good"
	ConditionGood       ConditionType = "good"
	ConditionAcceptable ConditionType = "acceptable"
	ConditionUnknown    ConditionType = "unknown"
)

// Condition is one purchasable variant of a product.
type Condition struct {
	Type      ConditionType `json:"type"`
	Label     string        `json:"label"`
	Price     float64       `json:"price"`
	Available bool          `json:"available"`
	VariantID string        `json:"variant_id,omitempty"`
	SKU       *string       `json:"sku,omitempty"`
	Stock     *int          `json:"stock,omitempty"`
}

// ProductDetail is the one-to-one detail record of a product. It is replaced
// wholesale on each detail scrape.
type ProductDetail struct {
	ProductID    string            `json:"product_id"`
	Description  *string           `json:"description"`
	Specs        map[string]string `json:"specs"`
	RatingsAvg   *float64          `json:"ratings_avg"`
	ReviewsCount int               `json:"reviews_count"`
	Author       *string           `json:"author"`
	ImageURLs    []string          `json:"image_urls"`
	Conditions   []Condition       `json:"conditions"`
	InStock      bool              `json:"in_stock"`
	RRP          *float64          `json:"rrp"`
	Series       *string           `json:"series"`
	ScrapedAt    time.Time         `json:"scraped_at"`
}

// TargetType identifies what a scrape job fetched.
type TargetType string

const (
	TargetNavigation TargetType = "navigation"
	TargetCategory   TargetType = "category"
	TargetProduct    TargetType = "product"
)

// JobStatus is the lifecycle state of a scrape job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ScrapeJob records a single fetch-and-merge attempt.
type ScrapeJob struct {
	ID         string     `json:"id"`
	TargetURL  string     `json:"target_url"`
	TargetType TargetType `json:"target_type"`
	Status     JobStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	ErrorLog   *string    `json:"error_log"`
	ItemCount  int        `json:"item_count"`
}
