package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/law-makers/catalog/pkg/models"
)

const testBase = "https://www.worldofbooks.com"

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func floatPtr(f float64) *float64 {
	return &f
}

func selection(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc.Selection
}

func TestStrategies(t *testing.T) {
	s := selection(t, `<div class="a" data-x=" 42 "><a class="l">Dune <span>Paperback</span></a><p class="empty">  </p></div>`)

	t.Run("first of skips misses", func(t *testing.T) {
		st := FirstOf(Text(".missing"), Text(".empty"), Text("a.l"))
		v, ok := st(s)
		if !ok || v != "Dune Paperback" {
			t.Errorf("got %q, %v", v, ok)
		}
	})

	t.Run("first of with no success", func(t *testing.T) {
		if _, ok := FirstOf(Text(".missing"), Attr(".a", "data-missing"))(s); ok {
			t.Error("expected miss")
		}
	})

	t.Run("default", func(t *testing.T) {
		v, ok := FirstOf(Text(".missing"), Default("fallback"))(s)
		if !ok || v != "fallback" {
			t.Errorf("got %q, %v", v, ok)
		}
	})

	t.Run("attr trims", func(t *testing.T) {
		v, ok := Attr(".a", "data-x")(s)
		if !ok || v != "42" {
			t.Errorf("got %q, %v", v, ok)
		}
	})

	t.Run("map", func(t *testing.T) {
		st := Map(Attr(".a", "data-x"), func(v string) (int, bool) { return len(v), true })
		v, ok := st(s)
		if !ok || v != 2 {
			t.Errorf("got %d, %v", v, ok)
		}
	})

	t.Run("own text ignores children", func(t *testing.T) {
		v, ok := OwnText("a.l")(s)
		if !ok || v != "Dune" {
			t.Errorf("got %q, %v", v, ok)
		}
	})

	t.Run("html requires text", func(t *testing.T) {
		if _, ok := HTML(".empty")(s); ok {
			t.Error("expected blank element to miss")
		}
	})
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text     string
		amount   float64
		currency string
	}{
		{"£8.99", 8.99, CurrencyGBP},
		{"$12.50", 12.5, CurrencyUSD},
		{"€3", 3, CurrencyEUR},
		{"From 4.25", 4.25, CurrencyGBP},
		{"Free", 0, CurrencyGBP},
		{"", 0, CurrencyGBP},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			amount, currency := ParsePrice(tt.text)
			if amount != tt.amount || currency != tt.currency {
				t.Errorf("ParsePrice(%q) = %v %s, want %v %s", tt.text, amount, currency, tt.amount, tt.currency)
			}
		})
	}
}

func TestMinorUnits(t *testing.T) {
	if v, ok := minorUnits("899"); !ok || v != 8.99 {
		t.Errorf("minorUnits(899) = %v, %v", v, ok)
	}
	if _, ok := minorUnits("n/a"); ok {
		t.Error("expected garbage to miss")
	}
}

const listingHTML = `<html><body><ul>
<li class="ais-InfiniteHits-item">
  <div class="card" data-product-id="111">
    <div class="card__inner"><img src="//cdn.example.com/hobbit.jpg"></div>
    <a class="product-card" data-item_id="GOR001" data-item_name="The Hobbit" data-price="8.99" href="/en-gb/products/the-hobbit-GOR001">The Hobbit</a>
    <p class="author">J. R. R. Tolkien</p>
  </div>
</li>
<li class="ais-InfiniteHits-item">
  <div class="card" data-product-id="222">
    <a class="full-unstyled-link" data-item_id="" href="/en-gb/products/dune-222">Dune <span>Paperback</span></a>
    <span class="price-item">£4.50</span>
  </div>
</li>
<li class="ais-InfiniteHits-item">
  <div class="card" data-product-id="333"><a class="product-card" data-item_id="X" data-item_name="No link"></a></div>
</li>
<li class="ais-InfiniteHits-item"><div class="other">Sponsored</div></li>
</ul>
<nav class="pagination"><ul>
  <li><a href="/en-gb/collections/fiction?page=1">1</a></li>
  <li><span aria-current="page">2</span></li>
  <li><a href="/en-gb/collections/fiction?page=3">3</a></li>
  <li><a href="/en-gb/collections/fiction?page=9">9</a></li>
  <li><a rel="next" href="/en-gb/collections/fiction?page=3">Next</a></li>
</ul></nav>
</body></html>`

func TestProductList(t *testing.T) {
	e := New(testBase + "/en-gb")
	got := e.ProductList(listingHTML)

	want := ListPage{
		Version: SchemaVersion,
		Items: []ListItem{
			{
				Version:  SchemaVersion,
				SourceID: "GOR001",
				Title:    "The Hobbit",
				Author:   strPtr("J. R. R. Tolkien"),
				Price:    8.99,
				Currency: CurrencyGBP,
				ImageURL: strPtr("https://cdn.example.com/hobbit.jpg"),
				URL:      testBase + "/en-gb/products/the-hobbit-GOR001",
				Slug:     "the-hobbit-GOR001",
			},
			{
				Version:  SchemaVersion,
				SourceID: "222",
				Title:    "Dune",
				Price:    4.5,
				Currency: CurrencyGBP,
				URL:      testBase + "/en-gb/products/dune-222",
				Slug:     "dune-222",
			},
		},
		Skipped: 2,
		Pagination: PageInfo{
			CurrentPage: 2,
			TotalPages:  intPtr(9),
			NextPageURL: strPtr(testBase + "/en-gb/collections/fiction?page=3"),
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProductList mismatch (-want +got):\n%s", diff)
	}
}

func TestProductList_Empty(t *testing.T) {
	got := New(testBase).ProductList(`<html><body><p>No results</p></body></html>`)

	want := ListPage{Version: SchemaVersion, Items: []ListItem{}, Pagination: PageInfo{CurrentPage: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProductList mismatch (-want +got):\n%s", diff)
	}
}

const homeHTML = `<html><body>
<section class="section-collection-list"><ul>
  <li class="collection-list__item">
    <div class="card__media"><img src="/img/fiction-small.jpg" srcset="/img/fiction-small.jpg 165w, /img/fiction-large.jpg 360w"></div>
    <h3 class="card__heading"><a class="full-unstyled-link" href="/en-gb/collections/fiction-books">Fiction Books</a></h3>
    <p class="card__caption">  Novels and
      stories </p>
  </li>
  <li class="collection-list__item">
    <div class="card__information"><h3 class="card__heading"><a href="/en-gb/collections/rare-books">Rare Books</a></h3></div>
  </li>
  <li class="collection-list__item">
    <h3 class="card__heading"><a class="full-unstyled-link" href="/en-gb/collections/empty">  </a></h3>
  </li>
</ul></section>
</body></html>`

func TestHomeCategories(t *testing.T) {
	got := New(testBase).HomeCategories(homeHTML)

	want := []CategoryRecord{
		{
			Version:     SchemaVersion,
			Title:       "Fiction Books",
			URL:         testBase + "/en-gb/collections/fiction-books",
			Slug:        "fiction-books",
			ImageURL:    strPtr(testBase + "/img/fiction-large.jpg"),
			Description: strPtr("Novels and stories"),
		},
		{
			Version: SchemaVersion,
			Title:   "Rare Books",
			URL:     testBase + "/en-gb/collections/rare-books",
			Slug:    "rare-books",
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("HomeCategories mismatch (-want +got):\n%s", diff)
	}
}

const detailHTML = `<html><body>
<product-info data-product-id="999">
  <form id="product-form-main"><input type="hidden" name="product-id" value="4455"></form>
  <div class="product__title"><h1>The Hobbit <span class="author-item"><a>by J. R. R. Tolkien</a></span></h1></div>
  <div class="product__media"><img src="//cdn.example.com/hobbit-cover.jpg"></div>
  <ul class="product__media-list">
    <li><img src="/img/1.jpg"></li>
    <li><img src="/img/2.jpg"></li>
    <li><img src="/img/1.jpg"></li>
  </ul>
  <span class="price-item price-item--regular">£6.49</span>
  <input type="hidden" data-rrp="1099">
  <div class="condition-selector-container">
    <input type="radio" id="cond-1" data-condition="Very Good" data-price="649" data-stock="3" data-sku="SKU1" value="v1">
    <label for="cond-1"><span>Very Good</span></label>
    <input type="radio" id="cond-2" data-condition="Like New" data-price="899" data-stock="0" value="v2">
    <label for="cond-2"><span>Like New condition</span></label>
    <input type="radio" id="cond-3" data-condition="Acceptable" data-price="399" disabled value="v3">
  </div>
  <button class="product-form__submit">Add to basket</button>
  <div class="product__description"><p>A <strong>classic</strong> tale.</p><script>alert(1)</script></div>
  <table class="product-specifications">
    <tr><th>ISBN 13</th><td>9780261103344</td></tr>
    <tr><th>Pages</th><td>320</td></tr>
  </table>
  <div class="series-block"><a href="/en-gb/series/middle-earth">Middle-earth</a></div>
</product-info>
</body></html>`

func TestProductDetail(t *testing.T) {
	const pageURL = testBase + "/en-gb/products/the-hobbit-4455"
	got := New(testBase).ProductDetail(detailHTML, pageURL)

	want := Detail{
		Version:   SchemaVersion,
		SourceID:  "4455",
		Title:     "The Hobbit",
		Author:    strPtr("J. R. R. Tolkien"),
		Price:     6.49,
		Currency:  CurrencyGBP,
		ImageURL:  strPtr("https://cdn.example.com/hobbit-cover.jpg"),
		ImageURLs: []string{testBase + "/img/1.jpg", testBase + "/img/2.jpg"},
		URL:       pageURL,
		Slug:      "the-hobbit-4455",
		Specs:     map[string]string{"ISBN 13": "9780261103344", "Pages": "320"},
		Conditions: []models.Condition{
			{Type: models.ConditionVeryGood, Label: "Very Good", Price: 6.49, Available: true, VariantID: "v1", SKU: strPtr("SKU1"), Stock: intPtr(3)},
			{Type: models.ConditionLikeNew, Label: "Like New condition", Price: 8.99, Available: false, VariantID: "v2", Stock: intPtr(0)},
			{Type: models.ConditionAcceptable, Label: "Acceptable", Price: 3.99, Available: false, VariantID: "v3"},
		},
		InStock: true,
		RRP:     floatPtr(10.99),
		Series:  strPtr("Middle-earth"),
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Detail{}, "Description")); diff != "" {
		t.Errorf("ProductDetail mismatch (-want +got):\n%s", diff)
	}

	if got.Description == nil {
		t.Fatal("expected description")
	}
	if !strings.Contains(*got.Description, "classic") || strings.Contains(*got.Description, "alert") {
		t.Errorf("unexpected description %q", *got.Description)
	}
	if !got.Valid() {
		t.Error("expected detail to be valid")
	}
}

func TestProductDetail_Fallbacks(t *testing.T) {
	html := `<html><body>
<script src="/assets/theme.js"></script>
<script>document.querySelector('.x').remove();</script>
<script>var meta = {"product":{"id":7788123,"vendor":"WOB"}};</script>
<h1>Dune</h1>
<span class="price-item">£3.20</span>
<div class="sold-out">Sold out</div>
</body></html>`

	got := New(testBase).ProductDetail(html, testBase+"/en-gb/products/dune-77")

	if got.SourceID != "7788123" {
		t.Errorf("SourceID = %q, want script fallback", got.SourceID)
	}
	if got.Title != "Dune" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.InStock {
		t.Error("expected sold out page to be out of stock")
	}

	want := []models.Condition{{Type: models.ConditionUnknown, Label: "Standard", Price: 3.2, Available: true}}
	if diff := cmp.Diff(want, got.Conditions); diff != "" {
		t.Errorf("Conditions mismatch (-want +got):\n%s", diff)
	}
	if got.Description != nil || got.RRP != nil || got.Series != nil {
		t.Error("expected optional fields to be nil")
	}
}

func TestProductDetail_Invalid(t *testing.T) {
	got := New(testBase).ProductDetail(`<html><body><p>Gone</p></body></html>`, testBase+"/en-gb/products/missing")
	if got.Valid() {
		t.Error("detail without title should be invalid")
	}
	if got.SourceID != "" {
		t.Errorf("SourceID = %q, want empty", got.SourceID)
	}
}

func TestConditionType(t *testing.T) {
	tests := map[string]models.ConditionType{
		"New":        models.ConditionNew,
		"Like New":   models.ConditionLikeNew,
		"like-new":   models.ConditionLikeNew,
		"Very Good":  models.ConditionVeryGood,
		"Good":       models.ConditionGood,
		"Acceptable": models.ConditionAcceptable,
		"Damaged":    models.ConditionUnknown,
		"":           models.ConditionUnknown,
	}
	for raw, want := range tests {
		if got := conditionType(raw); got != want {
			t.Errorf("conditionType(%q) = %s, want %s", raw, got, want)
		}
	}
}
