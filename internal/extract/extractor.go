// Package extract turns rendered catalog pages into typed records.
//
// Every function here is a deterministic transform over an HTML string: no
// I/O, no retries. Malformed markup never produces an error; invalid records
// are dropped and counted instead.
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

// DefaultScriptBudget bounds inline script evaluation per page.
const DefaultScriptBudget = 250 * time.Millisecond

// Extractor holds the per-site settings the transforms need.
type Extractor struct {
	base         string
	desc         *descriptionConverter
	scriptBudget time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScriptBudget overrides how long inline scripts may run.
func WithScriptBudget(d time.Duration) Option {
	return func(e *Extractor) {
		e.scriptBudget = d
	}
}

// New creates an Extractor resolving relative links against baseURL's origin.
func New(baseURL string, opts ...Option) *Extractor {
	e := &Extractor{
		base:         urlutil.Origin(baseURL),
		scriptBudget: DefaultScriptBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.desc = newDescriptionConverter(e.base)
	return e
}

// BaseURL returns the origin used for link normalization.
func (e *Extractor) BaseURL() string {
	return e.base
}

func (e *Extractor) absolute(href string) string {
	return urlutil.Absolute(e.base, href)
}

func (e *Extractor) absolutePtr(href string) *string {
	if u := e.absolute(href); u != "" {
		return &u
	}
	return nil
}

func parse(html string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to parse HTML")
		return nil, false
	}
	return doc, true
}
