// Package static fetches catalog pages over plain HTTP without rendering.
//
// The storefront builds listings client-side, so this fetcher only sees
// server-rendered markup. It backs --transport=http and the test suite.
package static

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/proxy"
	"github.com/law-makers/catalog/internal/transport"
)

const defaultTimeout = 30 * time.Second

// Options configures a static Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Proxies   *proxy.ProxyPool
}

// Fetcher implements transport.Fetcher with a resty client.
type Fetcher struct {
	client  *resty.Client
	proxies *proxy.ProxyPool
	opts    Options

	mu       sync.Mutex
	viaProxy map[string]*resty.Client
}

// New creates a static Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	return &Fetcher{
		client:   newClient(opts),
		proxies:  opts.Proxies,
		opts:     opts,
		viaProxy: make(map[string]*resty.Client),
	}
}

func newClient(opts Options) *resty.Client {
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-GB,en;q=0.9")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeaders(opts.Headers)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return client
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "http"
}

// Fetch retrieves url. The route only labels the returned page.
func (f *Fetcher) Fetch(ctx context.Context, url string, route transport.RouteKind) (*transport.Page, error) {
	start := time.Now()

	client := f.client
	var proxyURL string
	if f.proxies != nil && f.proxies.Len() > 0 {
		proxyURL = f.proxies.GetNext()
		client = f.clientFor(proxyURL)
	}

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		if proxyURL != "" {
			f.proxies.MarkFailed(proxyURL)
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, transport.Classify(url, 0, err)
	}

	status := resp.StatusCode()
	if fe := transport.Classify(url, status, nil); fe != nil {
		if proxyURL != "" && fe.Kind == transport.KindBlocked {
			f.proxies.MarkFailed(proxyURL)
		}
		return nil, fe
	}
	if proxyURL != "" {
		f.proxies.MarkHealthy(proxyURL)
	}

	body := resp.String()
	if title := pageTitle(body); transport.IsChallengeTitle(title) {
		fe := transport.NewFetchError(transport.KindBlocked, url, "bot challenge page", nil)
		fe.StatusCode = status
		return nil, fe
	}

	finalURL := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	elapsed := time.Since(start)
	log.Debug().
		Str("url", url).
		Int("status", status).
		Int("bytes", len(body)).
		Dur("elapsed", elapsed).
		Msg("Fetched page")

	return &transport.Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       body,
		Route:      route,
		FetchedAt:  time.Now(),
		Elapsed:    elapsed,
	}, nil
}

// clientFor returns a client pinned to proxyURL. resty holds the proxy on the
// client, not the request.
func (f *Fetcher) clientFor(proxyURL string) *resty.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.viaProxy[proxyURL]; ok {
		return c
	}
	c := newClient(f.opts)
	c.SetProxy(proxyURL)
	f.viaProxy[proxyURL] = c
	return c
}

func pageTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

var _ transport.Fetcher = (*Fetcher)(nil)
