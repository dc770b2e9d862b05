package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	paginationSelector = `.pagination, nav[aria-label="Pagination"], [class*="pagination"]`
	currentPageSel     = `[aria-current="page"], .pagination__item--current, .current`
	nextPageSel        = `a[rel="next"], .pagination__item--next a, a:has(.icon-arrow-right)`
)

var (
	currentPage = FirstOf(
		Map(Text(currentPageSel), func(v string) (int, bool) {
			n, err := strconv.Atoi(v)
			return n, err == nil && n > 0
		}),
		Default(1),
	)
	nextPageHref = Attr(nextPageSel, "href")
)

func (e *Extractor) pagination(doc *goquery.Selection) PageInfo {
	info := PageInfo{CurrentPage: 1}

	container := doc.Find(paginationSelector).First()
	if container.Length() == 0 {
		return info
	}

	info.CurrentPage, _ = currentPage(container)
	if href, ok := nextPageHref(container); ok {
		info.NextPageURL = e.absolutePtr(href)
	}

	maxPage := 0
	container.Find("a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > maxPage {
			maxPage = n
		}
	})
	if maxPage > 0 {
		info.TotalPages = &maxPage
	}

	return info
}
