package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

// descriptionConverter sanitizes product description HTML and renders it as Markdown.
type descriptionConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

func newDescriptionConverter(base string) *descriptionConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	// Links inside descriptions point at other catalog pages.
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists || strings.TrimSpace(content) == "" {
				return nil
			}
			str := fmt.Sprintf("[%s](%s)", strings.TrimSpace(content), urlutil.ResolveURL(base+"/", href))
			return &str
		},
	})

	return &descriptionConverter{
		policy:    bluemonday.UGCPolicy(),
		converter: converter,
	}
}

// Convert returns nil when nothing readable is left after sanitizing.
func (d *descriptionConverter) Convert(rawHTML string) *string {
	clean := d.policy.Sanitize(rawHTML)
	out, err := d.converter.ConvertString(clean)
	if err != nil {
		log.Debug().Err(err).Msg("Description conversion failed, falling back to text")
		out = plainText(clean)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	return &out
}

func plainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
