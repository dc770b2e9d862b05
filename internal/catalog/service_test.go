package catalog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/internal/store/sqlite"
	"github.com/law-makers/catalog/internal/transport"
	"github.com/law-makers/catalog/pkg/models"
)

const siteRoot = "https://www.worldofbooks.com/en-gb"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSource struct {
	mu            sync.Mutex
	categories    []extract.CategoryRecord
	categoriesErr error
	lists         map[string]extract.ListPage
	listErr       error
	details       map[string]extract.Detail
	detailErr     error
	calls         map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		lists:   map[string]extract.ListPage{},
		details: map[string]extract.Detail{},
		calls:   map[string]int{},
	}
}

func (f *fakeSource) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeSource) HomeURL() string { return siteRoot }
func (f *fakeSource) CategoryURL(slug string, page int) string {
	return siteRoot + "/collections/" + slug
}
func (f *fakeSource) ProductURL(slug string) string { return siteRoot + "/products/" + slug }

func (f *fakeSource) Categories(ctx context.Context) ([]extract.CategoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["home"]++
	return f.categories, f.categoriesErr
}

func (f *fakeSource) CategoryProducts(ctx context.Context, slug string) (extract.ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["category:"+slug]++
	if f.listErr != nil {
		return extract.ListPage{}, f.listErr
	}
	list, ok := f.lists[slug]
	if !ok {
		return extract.ListPage{}, transport.NewFetchError(transport.KindNotFound, f.CategoryURL(slug, 1), "404", nil)
	}
	return list, nil
}

func (f *fakeSource) Product(ctx context.Context, slug string) (extract.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["product:"+slug]++
	if f.detailErr != nil {
		return extract.Detail{}, f.detailErr
	}
	d, ok := f.details[slug]
	if !ok {
		return extract.Detail{}, transport.NewFetchError(transport.KindNotFound, f.ProductURL(slug), "404", nil)
	}
	return d, nil
}

func (f *fakeSource) ScrapeBatch(ctx context.Context, slugs []string, opts scraper.BatchOptions) <-chan scraper.Result {
	out := make(chan scraper.Result, len(slugs))
	for _, slug := range slugs {
		r := scraper.Result{Slug: slug, URL: f.ProductURL(slug)}
		d, err := f.Product(ctx, slug)
		if err != nil {
			r.Err = err
		} else {
			r.Detail = &d
		}
		out <- r
	}
	close(out)
	return out
}

func (f *fakeSource) HealthCheck(ctx context.Context) scraper.Health {
	return scraper.Health{Healthy: true, Message: "ok"}
}

func blocked() error {
	return transport.NewFetchError(transport.KindBlocked, siteRoot, "403", nil)
}

func listItem(id, slug, title string, price float64) extract.ListItem {
	return extract.ListItem{
		Version:  extract.SchemaVersion,
		SourceID: id,
		Title:    title,
		Price:    price,
		Currency: "GBP",
		URL:      siteRoot + "/products/" + slug,
		Slug:     slug,
	}
}

func listPage(items ...extract.ListItem) extract.ListPage {
	if items == nil {
		items = []extract.ListItem{}
	}
	return extract.ListPage{Version: extract.SchemaVersion, Items: items}
}

func productDetail(id, slug, title string, price float64) extract.Detail {
	return extract.Detail{
		Version:    extract.SchemaVersion,
		SourceID:   id,
		Title:      title,
		Price:      price,
		Currency:   "GBP",
		URL:        siteRoot + "/products/" + slug,
		Slug:       slug,
		Specs:      map[string]string{"Pages": "320"},
		ImageURLs:  []string{},
		Conditions: []models.Condition{{Type: models.ConditionGood, Label: "Good", Price: price, Available: true}},
		InStock:    true,
	}
}

type fixture struct {
	svc   *Service
	src   *fakeSource
	store store.Store
	clock *testClock
}

func newFixture(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var st store.Store = db
	if wrap != nil {
		st = wrap(db)
	}

	src := newFakeSource()
	clock := newClock()
	svc, err := New(Options{Store: st, Source: src, Now: clock.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{svc: svc, src: src, store: st, clock: clock}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without store")
	}
}

func TestGetCategory_FirstSeenWithOneItem(t *testing.T) {
	f := newFixture(t, nil)
	f.src.lists["fiction-books"] = listPage(listItem("A1", "emma-A1", "Emma", 2.99))
	ctx := context.Background()

	got, err := f.svc.GetCategory(ctx, "fiction-books", 1, 20)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}

	if got.Category.Title != "Fiction Books" {
		t.Errorf("title = %q, want slug-derived title", got.Category.Title)
	}
	if got.Category.ProductCount != 1 {
		t.Errorf("product_count = %d, want 1", got.Category.ProductCount)
	}
	if got.Category.LastScrapedAt == nil || !got.Category.LastScrapedAt.Equal(f.clock.Now()) {
		t.Errorf("last_scraped_at = %v, want now", got.Category.LastScrapedAt)
	}
	if len(got.Products.Items) != 1 || got.Products.Items[0].SourceID != "A1" {
		t.Fatalf("unexpected products %+v", got.Products.Items)
	}
	if got.Products.Pagination != (Pagination{Page: 1, Limit: 20, TotalItems: 1, TotalPages: 1}) {
		t.Errorf("unexpected pagination %+v", got.Products.Pagination)
	}

	if _, err := f.svc.GetCategory(ctx, "fiction-books", 1, 20); err != nil {
		t.Fatalf("second GetCategory failed: %v", err)
	}
	if n := f.src.count("category:fiction-books"); n != 1 {
		t.Errorf("fresh category was scraped again: %d calls", n)
	}

	jobs, err := f.svc.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != models.JobCompleted || jobs[0].ItemCount != 1 || jobs[0].TargetType != models.TargetCategory {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestGetCategory_FreshnessBoundary(t *testing.T) {
	f := newFixture(t, nil)
	f.src.lists["art"] = listPage(listItem("A1", "a", "A", 1))
	ctx := context.Background()

	if _, err := f.svc.GetCategory(ctx, "art", 1, 20); err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}

	f.clock.Advance(DefaultMaxAge)
	if _, err := f.svc.GetCategory(ctx, "art", 1, 20); err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if n := f.src.count("category:art"); n != 1 {
		t.Errorf("age == threshold must be fresh, got %d scrapes", n)
	}

	f.clock.Advance(time.Millisecond)
	if _, err := f.svc.GetCategory(ctx, "art", 1, 20); err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if n := f.src.count("category:art"); n != 2 {
		t.Errorf("age > threshold must be stale, got %d scrapes", n)
	}
}

func TestGetCategory_StaleServedOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.src.lists["art"] = listPage(listItem("A1", "a", "A", 1), listItem("B2", "b", "B", 2))
	ctx := context.Background()

	first, err := f.svc.GetCategory(ctx, "art", 1, 20)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}

	f.clock.Advance(25 * time.Hour)
	f.src.listErr = blocked()

	got, err := f.svc.GetCategory(ctx, "art", 1, 20)
	if err != nil {
		t.Fatalf("expected stale copy, got error %v", err)
	}
	if got.Category.ID != first.Category.ID || len(got.Products.Items) != 2 {
		t.Errorf("unexpected stale response %+v", got)
	}
	if !got.Category.LastScrapedAt.Equal(*first.Category.LastScrapedAt) {
		t.Error("stale response must keep the old timestamp")
	}

	jobs, _ := f.svc.ListJobs(ctx, 1)
	if len(jobs) != 1 || jobs[0].Status != models.JobFailed || jobs[0].ErrorLog == nil {
		t.Errorf("expected failed job, got %+v", jobs)
	}
}

func TestGetCategory_MissingAndFetchFails(t *testing.T) {
	f := newFixture(t, nil)
	f.src.listErr = blocked()

	_, err := f.svc.GetCategory(context.Background(), "art", 1, 20)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if StatusOf(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", StatusOf(err))
	}
	if !errors.Is(err, transport.ErrBlocked) {
		t.Error("expected the fetch error to be wrapped")
	}
}

func TestGetCategory_MissingUpstream404(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetCategory(context.Background(), "no-such-category", 1, 20)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if StatusOf(err) != http.StatusNotFound {
		t.Errorf("status = %d, want 404", StatusOf(err))
	}
}

func TestGetCategory_InvalidSlug(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.GetCategory(context.Background(), "  ", 1, 20); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestRefreshCategory_AlwaysScrapes(t *testing.T) {
	f := newFixture(t, nil)
	f.src.lists["art"] = listPage(listItem("A1", "a", "A", 1))
	ctx := context.Background()

	if _, err := f.svc.GetCategory(ctx, "art", 1, 20); err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	f.src.lists["art"] = listPage(listItem("A1", "a", "A", 1), listItem("B2", "b", "B", 2))

	got, err := f.svc.RefreshCategory(ctx, "art")
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}
	if n := f.src.count("category:art"); n != 2 {
		t.Errorf("expected forced scrape, got %d calls", n)
	}
	if got.Category.ProductCount != 2 || got.Products.Pagination.TotalItems != 2 {
		t.Errorf("unexpected refresh result %+v", got)
	}
}

func TestMergeCategoryProducts_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	list := listPage(listItem("A1", "a", "A", 1), listItem("B2", "b", "B", 2))

	first, err := f.svc.MergeCategoryProducts(ctx, "art", list)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if first != (store.BulkResult{Inserted: 2}) {
		t.Errorf("first merge = %+v", first)
	}

	second, err := f.svc.MergeCategoryProducts(ctx, "art", list)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if second != (store.BulkResult{Updated: 2}) {
		t.Errorf("second merge = %+v", second)
	}

	n, _ := f.store.CountProducts(ctx, store.ProductFilter{})
	if n != 2 {
		t.Errorf("product rows = %d, want 2", n)
	}
	cat, _ := f.store.FindCategoryBySlug(ctx, "art")
	if cat.ProductCount != 2 {
		t.Errorf("product_count = %d, want 2", cat.ProductCount)
	}
	p, _ := f.store.FindProductBySlug(ctx, "a")
	if len(p.CategoryIDs) != 1 {
		t.Errorf("membership duplicated: %v", p.CategoryIDs)
	}
}

func TestMergeCategoryProducts_MonotonicMembership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	shared := listItem("S1", "shared", "Shared", 3)

	if _, err := f.svc.MergeCategoryProducts(ctx, "art", listPage(shared)); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if _, err := f.svc.MergeCategoryProducts(ctx, "history", listPage(shared)); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	// The product drops out of the first listing; membership is kept.
	if _, err := f.svc.MergeCategoryProducts(ctx, "art", listPage()); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	art, _ := f.store.FindCategoryBySlug(ctx, "art")
	history, _ := f.store.FindCategoryBySlug(ctx, "history")
	p, _ := f.store.FindProductBySlug(ctx, "shared")

	got := append([]string(nil), p.CategoryIDs...)
	want := []string{art.ID, history.ID}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("category_ids = %v, want %v", got, want)
	}

	if art.ProductCount != 0 {
		t.Errorf("empty listing must set product_count to 0, got %d", art.ProductCount)
	}
	if art.LastScrapedAt == nil {
		t.Error("empty listing must still stamp last_scraped_at")
	}
}

func TestMergeCategoryProducts_RejectsOtherSchemaVersion(t *testing.T) {
	f := newFixture(t, nil)
	list := listPage(listItem("A1", "a", "A", 1))
	list.Version = extract.SchemaVersion + 1

	if _, err := f.svc.MergeCategoryProducts(context.Background(), "art", list); !errors.Is(err, ErrSchemaVersion) {
		t.Errorf("expected schema version error, got %v", err)
	}

	list = listPage(listItem("A1", "a", "A", 1), listItem("B2", "b", "B", 2))
	list.Items[1].Version = 99
	res, err := f.svc.MergeCategoryProducts(context.Background(), "art", list)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if res != (store.BulkResult{Inserted: 1, Failed: 1}) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestGetAllCategories_SeedsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.src.categories = []extract.CategoryRecord{
		{Version: extract.SchemaVersion, Title: "Fiction", Slug: "fiction", URL: siteRoot + "/collections/fiction"},
		{Version: extract.SchemaVersion, Title: "Art", Slug: "art", URL: siteRoot + "/collections/art"},
	}
	ctx := context.Background()

	cats, err := f.svc.GetAllCategories(ctx)
	if err != nil {
		t.Fatalf("GetAllCategories failed: %v", err)
	}
	if len(cats) != 2 || cats[0].Title != "Art" || cats[1].Title != "Fiction" {
		t.Fatalf("expected categories sorted by title, got %+v", cats)
	}
	for _, c := range cats {
		if c.LastScrapedAt != nil {
			t.Errorf("seeded category %s must stay stale", c.Slug)
		}
		if c.ProductCount != 0 || c.ParentID != nil {
			t.Errorf("unexpected insert defaults on %+v", c)
		}
	}

	if _, err := f.svc.GetAllCategories(ctx); err != nil {
		t.Fatalf("GetAllCategories failed: %v", err)
	}
	if n := f.src.count("home"); n != 1 {
		t.Errorf("expected one seed, got %d", n)
	}
}

func TestGetAllCategories_SeedFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.src.categoriesErr = blocked()

	if _, err := f.svc.GetAllCategories(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}

	f.src.categoriesErr = nil
	if _, err := f.svc.GetAllCategories(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected an empty home page to fail the seed, got %v", err)
	}
}

func TestGetProduct_MissingCreatesProductAndDetail(t *testing.T) {
	f := newFixture(t, nil)
	f.src.details["emma"] = productDetail("E1", "emma", "Emma", 4.5)
	ctx := context.Background()

	got, err := f.svc.GetProduct(ctx, "emma")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.SourceID != "E1" || got.Title != "Emma" || got.Price != 4.5 {
		t.Errorf("unexpected product %+v", got)
	}
	if got.Detail == nil || got.Detail.Specs["Pages"] != "320" || len(got.Detail.Conditions) != 1 {
		t.Fatalf("unexpected detail %+v", got.Detail)
	}

	if _, err := f.svc.GetProduct(ctx, "emma"); err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if n := f.src.count("product:emma"); n != 1 {
		t.Errorf("fresh product with detail was scraped again: %d", n)
	}
}

func TestGetCategory_ListsProductViewedFirst(t *testing.T) {
	tests := []struct {
		name     string
		detailID string
	}{
		{"detail without product id", ""},
		{"detail with its own product id", "999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.src.details["foo-1"] = productDetail(tt.detailID, "foo-1", "Foo", 3)
			f.src.lists["fiction"] = listPage(listItem("123", "foo-1", "Foo", 2.5))
			ctx := context.Background()

			if _, err := f.svc.GetProduct(ctx, "foo-1"); err != nil {
				t.Fatalf("GetProduct failed: %v", err)
			}

			got, err := f.svc.GetCategory(ctx, "fiction", 1, 20)
			if err != nil {
				t.Fatalf("GetCategory failed: %v", err)
			}
			if got.Category.ProductCount != 1 {
				t.Errorf("product_count = %d, want 1", got.Category.ProductCount)
			}
			if len(got.Products.Items) != 1 || got.Products.Items[0].Slug != "foo-1" {
				t.Fatalf("listed products = %+v, want foo-1", got.Products.Items)
			}
			if got.Products.Pagination.TotalItems != got.Category.ProductCount {
				t.Errorf("membership %d does not match product_count %d",
					got.Products.Pagination.TotalItems, got.Category.ProductCount)
			}

			p, err := f.svc.GetProduct(ctx, "foo-1")
			if err != nil {
				t.Fatalf("GetProduct failed: %v", err)
			}
			if p.Detail == nil {
				t.Error("detail lost after the listing merge")
			}
		})
	}
}

func TestGetProduct_ListedWithoutDetailIsScraped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.MergeCategoryProducts(ctx, "art", listPage(listItem("E1", "emma", "Emma", 2))); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	f.src.details["emma"] = productDetail("E1", "emma", "Emma (Hardback)", 7)

	got, err := f.svc.GetProduct(ctx, "emma")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if f.src.count("product:emma") != 1 || got.Detail == nil {
		t.Fatal("expected a detail scrape for a fresh product without detail")
	}
	if got.Title != "Emma (Hardback)" || got.Price != 7 {
		t.Errorf("summary not refreshed from detail: %+v", got)
	}

	n, _ := f.store.CountProducts(ctx, store.ProductFilter{})
	if n != 1 {
		t.Errorf("detail scrape must not duplicate the product, got %d rows", n)
	}
}

func TestGetProduct_StaleServedOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.src.details["emma"] = productDetail("E1", "emma", "Emma", 4.5)
	ctx := context.Background()

	if _, err := f.svc.GetProduct(ctx, "emma"); err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	f.clock.Advance(DefaultMaxAge + time.Millisecond)
	f.src.detailErr = transport.NewFetchError(transport.KindTimeout, siteRoot, "slow", nil)

	got, err := f.svc.GetProduct(ctx, "emma")
	if err != nil {
		t.Fatalf("expected stale product, got %v", err)
	}
	if got.Detail == nil || got.Title != "Emma" {
		t.Errorf("unexpected stale product %+v", got)
	}
	if n := f.src.count("product:emma"); n != 2 {
		t.Errorf("expected a scrape attempt, got %d", n)
	}
}

func TestGetProduct_MissingAndFetchFails(t *testing.T) {
	f := newFixture(t, nil)
	f.src.detailErr = blocked()

	if _, err := f.svc.GetProduct(context.Background(), "emma"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}
}

func TestGetProduct_PageWithoutTitleIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	d := productDetail("", "ghost", "", 0)
	f.src.details["ghost"] = d

	_, err := f.svc.GetProduct(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRefreshProduct_ReplacesDetail(t *testing.T) {
	f := newFixture(t, nil)
	f.src.details["emma"] = productDetail("E1", "emma", "Emma", 4.5)
	ctx := context.Background()

	if _, err := f.svc.GetProduct(ctx, "emma"); err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}

	next := productDetail("E1", "emma", "Emma", 3)
	next.Specs = map[string]string{"Binding": "Paperback"}
	f.src.details["emma"] = next
	f.clock.Advance(time.Minute)

	got, err := f.svc.RefreshProduct(ctx, "emma")
	if err != nil {
		t.Fatalf("RefreshProduct failed: %v", err)
	}
	if f.src.count("product:emma") != 2 {
		t.Error("expected forced scrape")
	}
	if got.Detail == nil || got.Detail.Specs["Binding"] != "Paperback" || got.Detail.Specs["Pages"] != "" {
		t.Errorf("detail not replaced wholesale: %+v", got.Detail)
	}
	if !got.Detail.ScrapedAt.Equal(f.clock.Now()) || got.Price != 3 {
		t.Errorf("unexpected refreshed product %+v", got)
	}
}

func TestRefreshProduct_FailureDropsDetail(t *testing.T) {
	f := newFixture(t, nil)
	f.src.details["emma"] = productDetail("E1", "emma", "Emma", 4.5)
	ctx := context.Background()

	if _, err := f.svc.GetProduct(ctx, "emma"); err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	f.src.detailErr = blocked()

	got, err := f.svc.RefreshProduct(ctx, "emma")
	if err != nil {
		t.Fatalf("expected stale product, got %v", err)
	}
	if got.Detail != nil {
		t.Error("forced refresh discards the old detail before scraping")
	}
}

type failingSummaryStore struct {
	store.Store
}

func (failingSummaryStore) UpdateProductSummary(context.Context, string, store.ProductSummary) error {
	return errors.New("summary write failed")
}

func TestMergeProductDetail_SecondStepFailureKeepsDetail(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return failingSummaryStore{s} })
	ctx := context.Background()

	if _, err := f.svc.MergeCategoryProducts(ctx, "art", listPage(listItem("E1", "emma", "Emma", 2))); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	before, _ := f.store.FindProductBySlug(ctx, "emma")

	f.clock.Advance(time.Hour)
	saved, err := f.svc.MergeProductDetail(ctx, "emma", productDetail("E1", "emma", "Emma (New)", 9))
	if err != nil || !saved {
		t.Fatalf("expected detail to be saved, got %v %v", saved, err)
	}

	detail, err := f.store.FindProductDetail(ctx, before.ID)
	if err != nil {
		t.Fatalf("detail missing after failed second step: %v", err)
	}
	if !detail.ScrapedAt.Equal(f.clock.Now()) {
		t.Errorf("unexpected detail %+v", detail)
	}

	after, _ := f.store.FindProductBySlug(ctx, "emma")
	if after.Title != "Emma" || !after.LastScrapedAt.Equal(*before.LastScrapedAt) {
		t.Errorf("summary must be unchanged, got %+v", after)
	}
}

func TestSearchProducts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var items []extract.ListItem
	for i, title := range []string{"Dune", "Dune Messiah", "Children of Dune", "Emma"} {
		items = append(items, listItem(string(rune('A'+i))+"1", "p"+string(rune('a'+i)), title, 1))
	}
	if _, err := f.svc.MergeCategoryProducts(ctx, "sci-fi", listPage(items...)); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got, err := f.svc.SearchProducts(ctx, "dune", 2, 2)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	want := Pagination{Page: 2, Limit: 2, TotalItems: 3, TotalPages: 2, HasNextPage: false, HasPrevPage: true}
	if got.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", got.Pagination, want)
	}
	if len(got.Items) != 1 {
		t.Errorf("expected 1 item on page 2, got %d", len(got.Items))
	}

	bySource, err := f.svc.SearchProducts(ctx, "d1", 1, 0)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if len(bySource.Items) != 1 || bySource.Items[0].Title != "Emma" || bySource.Pagination.Limit != DefaultLimit {
		t.Errorf("unexpected source id match %+v", bySource)
	}

	if _, err := f.svc.SearchProducts(ctx, " ", 1, 20); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestScrapeProducts(t *testing.T) {
	f := newFixture(t, nil)
	f.src.details["emma"] = productDetail("E1", "emma", "Emma", 4.5)
	f.src.details["dune"] = productDetail("D1", "dune", "Dune", 6)
	ctx := context.Background()

	var seen []string
	results := f.svc.ScrapeProducts(ctx, []string{"emma", "missing", "dune"}, scraper.DefaultBatchOptions(), func(r BatchResult) {
		seen = append(seen, r.Slug)
	})

	if len(results) != 3 || len(seen) != 3 {
		t.Fatalf("expected 3 results, got %d (%v)", len(results), seen)
	}
	if !results["emma"].Success || !results["emma"].Saved {
		t.Errorf("unexpected emma result %+v", results["emma"])
	}
	if results["missing"].Success || results["missing"].Error == "" {
		t.Errorf("unexpected missing result %+v", results["missing"])
	}

	n, _ := f.store.CountProducts(ctx, store.ProductFilter{})
	if n != 2 {
		t.Errorf("expected 2 products saved, got %d", n)
	}
	jobs, _ := f.svc.ListJobs(ctx, 10)
	if len(jobs) != 3 {
		t.Errorf("expected a job per slug, got %d", len(jobs))
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	if h := f.svc.Health(context.Background()); !h.Healthy {
		t.Errorf("expected healthy, got %+v", h)
	}
}
