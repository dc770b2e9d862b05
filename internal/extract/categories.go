package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

const (
	homeItemSelector    = "section.section-collection-list li.collection-list__item"
	homeImageSelector   = ".card__media img"
	homeCaptionSelector = ".card__caption, p.card__caption"
)

var homeLinkSelectors = []string{
	"h3.card__heading a.full-unstyled-link",
	".card__information h3.card__heading a",
	"a[href*='/collections/']",
}

var (
	homeImage = FirstOf(
		Map(Attr(homeImageSelector, "srcset"), lastSrcsetURL),
		Attr(homeImageSelector, "src"),
	)
	homeCaption = Map(Text(homeCaptionSelector), func(v string) (string, bool) {
		v = strings.Join(strings.Fields(v), " ")
		return v, v != ""
	})
)

// HomeCategories extracts the category tiles from the site's home page.
func (e *Extractor) HomeCategories(html string) []CategoryRecord {
	out := []CategoryRecord{}

	doc, ok := parse(html)
	if !ok {
		return out
	}

	skipped := 0
	doc.Find(homeItemSelector).Each(func(_ int, item *goquery.Selection) {
		link := firstMatch(item, homeLinkSelectors...)
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())

		rec := CategoryRecord{
			Version:     SchemaVersion,
			Title:       title,
			URL:         e.absolute(href),
			Slug:        urlutil.Slug(href),
			Description: optional(homeCaption, item),
		}
		if src, ok := homeImage(item); ok {
			rec.ImageURL = e.absolutePtr(src)
		}

		if rec.Title == "" || rec.URL == "" || rec.Slug == "" {
			skipped++
			return
		}
		out = append(out, rec)
	})

	log.Debug().Int("categories", len(out)).Int("skipped", skipped).Msg("Parsed home categories")
	return out
}

// lastSrcsetURL picks the URL of the final (largest) srcset candidate.
func lastSrcsetURL(srcset string) (string, bool) {
	candidates := strings.Split(srcset, ",")
	last := strings.TrimSpace(candidates[len(candidates)-1])
	fields := strings.Fields(last)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func firstMatch(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if m := s.Find(sel).First(); m.Length() > 0 {
			return m
		}
	}
	return s.Slice(0, 0)
}
