package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
	"github.com/law-makers/catalog/pkg/models"
)

const (
	detailTitleSelector     = ".product__title h1, h1"
	detailAuthorSelector    = ".author-item a, .author-item"
	detailImageSelector     = ".product__media img, .product-media img, media-gallery img"
	detailGallerySelector   = ".product__media-list img, media-gallery img"
	detailSpecRowSelector   = ".product-specifications tr, .product-specs li, [class*='spec'] tr"
	detailSpecLabelSelector = "th, .spec-label, td:first-child"
	detailSpecValueSelector = "td:last-child, .spec-value"
	detailConditionSelector = `.condition-selector-container input[type="radio"], .variants-selector input[name="condition"]`
	detailSubmitSelector    = ".product-form__submit, button[name='add']"
	detailSoldOutSelector   = ".sold-out, .out-of-stock, [class*='sold-out']"
	detailSeriesSelector    = ".series-block a, [class*='series'] a"
)

var leadingBy = regexp.MustCompile(`(?i)^by\s*`)

var (
	detailAuthor = Map(Text(detailAuthorSelector), func(v string) (string, bool) {
		v = strings.TrimSpace(leadingBy.ReplaceAllString(v, ""))
		return v, v != ""
	})

	detailPriceText = FirstOf(
		Text(".price-item--regular"),
		Text(".price-item"),
		Default("0"),
	)

	detailImage = Attr(detailImageSelector, "src")

	detailDescriptionHTML = FirstOf(
		HTML(".product__description"),
		HTML(`[class*="product-description"]`),
		HTML(".rte"),
	)

	detailRRP = Map(Attr("input[data-rrp]", "data-rrp"), minorUnits)

	detailSeries = Text(detailSeriesSelector)
)

// detailTitle reads the product heading with the embedded author span removed.
func detailTitle(s *goquery.Selection) (string, bool) {
	h := s.Find(detailTitleSelector).First()
	if h.Length() == 0 {
		return "", false
	}
	c := h.Clone()
	c.Find(".author-item").Remove()
	v := strings.Join(strings.Fields(c.Text()), " ")
	return v, v != ""
}

// ProductDetail extracts a product page snapshot taken after the variant and
// condition widgets have rendered. pageURL is the URL the page was loaded from.
func (e *Extractor) ProductDetail(html, pageURL string) Detail {
	d := Detail{
		Version:    SchemaVersion,
		URL:        pageURL,
		Slug:       urlutil.Slug(pageURL),
		Currency:   CurrencyGBP,
		Specs:      map[string]string{},
		ImageURLs:  []string{},
		Conditions: []models.Condition{},
		InStock:    true,
	}

	doc, ok := parse(html)
	if !ok {
		d.Conditions = append(d.Conditions, standardCondition(d.Price))
		return d
	}
	root := doc.Selection

	sourceID := FirstOf(
		Attr("form[id*='product-form'] input[name='product-id']", "value"),
		Attr("[data-product-id]", "data-product-id"),
		Attr("product-info", "data-product-id"),
		e.scriptProductID(),
		Default(""),
	)
	d.SourceID, _ = sourceID(root)
	d.Title, _ = detailTitle(root)
	d.Author = optional(detailAuthor, root)

	priceText, _ := detailPriceText(root)
	d.Price, d.Currency = ParsePrice(priceText)

	if src, ok := detailImage(root); ok {
		d.ImageURL = e.absolutePtr(src)
	}
	d.ImageURLs = e.gallery(root)

	if raw, ok := detailDescriptionHTML(root); ok {
		d.Description = e.desc.Convert(raw)
	}

	d.Specs = specs(root)
	d.Conditions = e.conditions(root, d.Price)
	d.InStock = inStock(root)

	if rrp, ok := detailRRP(root); ok {
		d.RRP = &rrp
	}
	d.Series = optional(detailSeries, root)

	return d
}

func (e *Extractor) gallery(root *goquery.Selection) []string {
	seen := map[string]bool{}
	out := []string{}
	root.Find(detailGallerySelector).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		u := e.absolute(src)
		if seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	})
	return out
}

func specs(root *goquery.Selection) map[string]string {
	out := map[string]string{}
	root.Find(detailSpecRowSelector).Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(detailSpecLabelSelector).First().Text())
		value := strings.TrimSpace(row.Find(detailSpecValueSelector).First().Text())
		if label != "" && value != "" && label != value {
			out[label] = value
		}
	})
	return out
}

// conditions reads the variant radios. Without any it returns a single
// synthetic "Standard" entry at the page price so callers never see an empty list.
func (e *Extractor) conditions(root *goquery.Selection, pagePrice float64) []models.Condition {
	out := []models.Condition{}

	root.Find(detailConditionSelector).Each(func(_ int, input *goquery.Selection) {
		raw, _ := input.Attr("data-condition")
		priceAttr, _ := input.Attr("data-price")
		variantID, _ := input.Attr("value")

		c := models.Condition{
			Type:      conditionType(raw),
			Label:     strings.TrimSpace(raw),
			VariantID: variantID,
		}
		if p, ok := minorUnits(priceAttr); ok {
			c.Price = p
		}
		if sku, ok := input.Attr("data-sku"); ok && sku != "" {
			c.SKU = &sku
		}

		_, disabled := input.Attr("disabled")
		c.Available = !disabled
		if stockAttr, ok := input.Attr("data-stock"); ok && stockAttr != "" {
			stock, err := strconv.Atoi(strings.TrimSpace(stockAttr))
			if err == nil {
				c.Stock = &stock
			}
			c.Available = !disabled && err == nil && stock > 0
		}

		if id, ok := input.Attr("id"); ok && id != "" {
			label := root.Find("label").FilterFunction(func(_ int, l *goquery.Selection) bool {
				f, _ := l.Attr("for")
				return f == id
			}).First()
			if v := strings.TrimSpace(label.Find("span").First().Text()); v != "" {
				c.Label = v
			}
		}

		out = append(out, c)
	})

	if len(out) == 0 {
		out = append(out, standardCondition(pagePrice))
	}
	return out
}

func standardCondition(price float64) models.Condition {
	return models.Condition{
		Type:      models.ConditionUnknown,
		Label:     "Standard",
		Price:     price,
		Available: true,
	}
}

func conditionType(raw string) models.ConditionType {
	n := strings.ToLower(strings.TrimSpace(raw))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	switch {
	case n == "new":
		return models.ConditionNew
	case strings.Contains(n, "like"):
		return models.ConditionLikeNew
	case strings.Contains(n, "very"):
		return models.ConditionVeryGood
	case n == "good":
		return models.ConditionGood
	case strings.Contains(n, "accept"):
		return models.ConditionAcceptable
	}
	return models.ConditionUnknown
}

func inStock(root *goquery.Selection) bool {
	submit := root.Find(detailSubmitSelector).First()
	_, disabled := submit.Attr("disabled")
	soldOut := root.Find(detailSoldOutSelector).Length() > 0
	return !disabled && !soldOut
}
