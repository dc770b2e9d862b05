package catalog

import (
	"time"

	"github.com/law-makers/catalog/pkg/models"
)

// Pagination defaults.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination describes one page of a larger result.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Paginated is a page of items.
type Paginated[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NormalizePage clamps page to at least 1 and limit to 1..MaxLimit. A zero
// limit means DefaultLimit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return page, limit
}

// NewPagination computes the page metadata for total items.
func NewPagination(total, page, limit int) Pagination {
	page, limit = NormalizePage(page, limit)
	totalPages := (total + limit - 1) / limit
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// CategoryView is the category header of a category response.
type CategoryView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	ProductCount  int        `json:"productCount"`
	LastScrapedAt *time.Time `json:"lastScrapedAt"`
}

// ProductSummary is a product as listed in categories and search results.
type ProductSummary struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"sourceId"`
	Title         string     `json:"title"`
	Price         float64    `json:"price"`
	Currency      string     `json:"currency"`
	ImageURL      *string    `json:"imageUrl"`
	Slug          string     `json:"slug"`
	URL           string     `json:"url"`
	LastScrapedAt *time.Time `json:"lastScrapedAt"`
}

// CategoryWithProducts is a category and one page of its products.
type CategoryWithProducts struct {
	Category CategoryView              `json:"category"`
	Products Paginated[ProductSummary] `json:"products"`
}

// DetailView is the detail section of a product response.
type DetailView struct {
	Description  *string            `json:"description"`
	Specs        map[string]string  `json:"specs"`
	RatingsAvg   *float64           `json:"ratingsAvg"`
	ReviewsCount int                `json:"reviewsCount"`
	Conditions   []models.Condition `json:"conditions"`
	InStock      bool               `json:"inStock"`
	RRP          *float64           `json:"rrp"`
	Series       *string            `json:"series"`
	ScrapedAt    time.Time          `json:"scrapedAt"`
}

// ProductWithDetail is a product and its detail record, if one is stored.
type ProductWithDetail struct {
	ID            string      `json:"id"`
	SourceID      string      `json:"sourceId"`
	Title         string      `json:"title"`
	Author        *string     `json:"author"`
	Price         float64     `json:"price"`
	Currency      string      `json:"currency"`
	ImageURL      *string     `json:"imageUrl"`
	ImageURLs     []string    `json:"imageUrls"`
	Slug          string      `json:"slug"`
	URL           string      `json:"url"`
	LastScrapedAt *time.Time  `json:"lastScrapedAt"`
	Detail        *DetailView `json:"detail"`
}

// CategoryViews maps stored categories to their response shape.
func CategoryViews(cs []models.Category) []CategoryView {
	out := make([]CategoryView, len(cs))
	for i := range cs {
		out[i] = categoryView(&cs[i])
	}
	return out
}

func categoryView(c *models.Category) CategoryView {
	return CategoryView{
		ID:            c.ID,
		Title:         c.Title,
		Slug:          c.Slug,
		ProductCount:  c.ProductCount,
		LastScrapedAt: c.LastScrapedAt,
	}
}

func productSummary(p models.Product) ProductSummary {
	return ProductSummary{
		ID:            p.ID,
		SourceID:      p.SourceID,
		Title:         p.Title,
		Price:         p.Price,
		Currency:      p.Currency,
		ImageURL:      p.ImageURL,
		Slug:          p.Slug,
		URL:           p.SourceURL,
		LastScrapedAt: p.LastScrapedAt,
	}
}

func productSummaries(ps []models.Product) []ProductSummary {
	out := make([]ProductSummary, 0, len(ps))
	for _, p := range ps {
		out = append(out, productSummary(p))
	}
	return out
}

func productWithDetail(p *models.Product, d *models.ProductDetail) *ProductWithDetail {
	out := &ProductWithDetail{
		ID:            p.ID,
		SourceID:      p.SourceID,
		Title:         p.Title,
		Price:         p.Price,
		Currency:      p.Currency,
		ImageURL:      p.ImageURL,
		ImageURLs:     []string{},
		Slug:          p.Slug,
		URL:           p.SourceURL,
		LastScrapedAt: p.LastScrapedAt,
	}
	if d == nil {
		return out
	}
	out.Author = d.Author
	if len(d.ImageURLs) > 0 {
		out.ImageURLs = d.ImageURLs
	}
	out.Detail = &DetailView{
		Description:  d.Description,
		Specs:        d.Specs,
		RatingsAvg:   d.RatingsAvg,
		ReviewsCount: d.ReviewsCount,
		Conditions:   d.Conditions,
		InStock:      d.InStock,
		RRP:          d.RRP,
		Series:       d.Series,
		ScrapedAt:    d.ScrapedAt,
	}
	return out
}
