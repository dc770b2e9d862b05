package extract

import "github.com/law-makers/catalog/pkg/models"

// SchemaVersion is stamped on every record produced by this package. The merge
// engine refuses records carrying a different version.
const SchemaVersion = 1

// CategoryRecord is a category tile scraped from the home page.
type CategoryRecord struct {
	Version     int     `json:"version"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Slug        string  `json:"slug"`
	ImageURL    *string `json:"imageUrl"`
	Description *string `json:"description"`
}

// ListItem is a product card scraped from a category listing.
type ListItem struct {
	Version  int     `json:"version"`
	SourceID string  `json:"sourceId"`
	Title    string  `json:"title"`
	Author   *string `json:"author"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	ImageURL *string `json:"imageUrl"`
	URL      string  `json:"url"`
	Slug     string  `json:"slug"`
}

// PageInfo describes the listing's own pagination controls.
type PageInfo struct {
	CurrentPage int     `json:"currentPage"`
	TotalPages  *int    `json:"totalPages"`
	NextPageURL *string `json:"nextPageUrl"`
}

// ListPage is the result of extracting one category listing page.
// Skipped counts cards dropped for missing title, URL or slug.
type ListPage struct {
	Version    int        `json:"version"`
	Items      []ListItem `json:"items"`
	Skipped    int        `json:"skipped"`
	Pagination PageInfo   `json:"pagination"`
}

// Detail is everything read from a product page.
type Detail struct {
	Version     int                `json:"version"`
	SourceID    string             `json:"sourceId"`
	Title       string             `json:"title"`
	Author      *string            `json:"author"`
	Price       float64            `json:"price"`
	Currency    string             `json:"currency"`
	ImageURL    *string            `json:"imageUrl"`
	ImageURLs   []string           `json:"imageUrls"`
	URL         string             `json:"url"`
	Slug        string             `json:"slug"`
	Description *string            `json:"description"`
	Specs       map[string]string  `json:"specs"`
	Conditions  []models.Condition `json:"conditions"`
	InStock     bool               `json:"inStock"`
	RRP         *float64           `json:"rrp"`
	Series      *string            `json:"series"`
}

// Valid reports whether the detail carries the fields needed to persist a product.
func (d Detail) Valid() bool {
	return d.Title != "" && d.URL != "" && d.Slug != ""
}
