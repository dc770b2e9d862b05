package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

const (
	listItemSelector    = "li.ais-InfiniteHits-item"
	listCardSelector    = ".card[data-product-id]"
	listLinkSelector    = "a.product-card[data-item_id], a.full-unstyled-link[data-item_id]"
	listHeadingSelector = ".card__heading"
	listPriceSelector   = ".price-item"
	listImageSelector   = ".card__inner img"
	listAuthorSelector  = "p.author, .author"
)

type price struct {
	amount   float64
	currency string
}

var (
	listSourceID = FirstOf(
		Attr(listLinkSelector, "data-item_id"),
		Attr(listCardSelector, "data-product-id"),
		Default(""),
	)

	listTitle = FirstOf(
		Attr(listLinkSelector, "data-item_name"),
		OwnText(listLinkSelector),
		Text(listLinkSelector),
		Text(listHeadingSelector),
	)

	listPrice = FirstOf(
		Map(Attr(listLinkSelector, "data-price"), func(v string) (price, bool) {
			return price{amount: parseAttrPrice(v), currency: CurrencyGBP}, true
		}),
		Map(Text(listPriceSelector), func(v string) (price, bool) {
			amount, currency := ParsePrice(v)
			return price{amount: amount, currency: currency}, true
		}),
		Default(price{amount: 0, currency: CurrencyGBP}),
	)

	listHref   = Attr(listLinkSelector, "href")
	listImage  = Attr(listImageSelector, "src")
	listAuthor = Text(listAuthorSelector)
)

// ProductList extracts product cards from a rendered category listing.
func (e *Extractor) ProductList(html string) ListPage {
	page := ListPage{Version: SchemaVersion, Items: []ListItem{}, Pagination: PageInfo{CurrentPage: 1}}

	doc, ok := parse(html)
	if !ok {
		return page
	}

	doc.Find(listItemSelector).Each(func(_ int, item *goquery.Selection) {
		li, ok := e.listItem(item)
		if !ok {
			page.Skipped++
			return
		}
		page.Items = append(page.Items, li)
	})
	page.Pagination = e.pagination(doc.Selection)

	log.Debug().
		Int("items", len(page.Items)).
		Int("skipped", page.Skipped).
		Msg("Parsed product list")

	return page
}

func (e *Extractor) listItem(item *goquery.Selection) (ListItem, bool) {
	if item.Find(listCardSelector).Length() == 0 {
		return ListItem{}, false
	}

	sourceID, _ := listSourceID(item)
	title, _ := listTitle(item)
	p, _ := listPrice(item)
	href, _ := listHref(item)

	li := ListItem{
		Version:  SchemaVersion,
		SourceID: sourceID,
		Title:    title,
		Author:   optional(listAuthor, item),
		Price:    p.amount,
		Currency: p.currency,
		URL:      e.absolute(href),
		Slug:     urlutil.Slug(href),
	}
	if src, ok := listImage(item); ok {
		li.ImageURL = e.absolutePtr(src)
	}

	if li.Title == "" || li.URL == "" || li.Slug == "" {
		return ListItem{}, false
	}
	return li, true
}
