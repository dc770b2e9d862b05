// Package dynamic renders catalog pages in headless Chrome.
package dynamic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/transport"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	readyPollInterval        = 250 * time.Millisecond
	readyPollTimeout         = 15 * time.Second
	scrollSteps              = 6
	scrollPause              = 400 * time.Millisecond
)

// stealthScript hides the most common automation fingerprint.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

const acceptCookiesScript = `(() => {
	const b = document.querySelector('#onetrust-accept-btn-handler, button[aria-label*="Accept"], .cookie-consent button');
	if (b) { b.click(); return true; }
	return false;
})()`

const scrollScript = `window.scrollBy(0, document.body.scrollHeight); document.body.scrollHeight`

// readyExpr is polled until the route's widgets have rendered. A category is
// ready once it shows hits, product cards or its empty state.
var readyExpr = map[transport.RouteKind]string{
	transport.RouteHome:     `!!document.querySelector('section.section-collection-list')`,
	transport.RouteCategory: `!!document.querySelector('li.ais-InfiniteHits-item, .card[data-product-id], .ais-InfiniteHits--empty, .collection--empty')`,
	transport.RouteProduct:  `!!document.querySelector('product-info, .product')`,
}

// Fetcher implements transport.Fetcher with a pool of headless browsers.
type Fetcher struct {
	pool    *BrowserPool
	timeout time.Duration
	headers map[string]string
}

// New creates a browser-backed Fetcher. navTimeout bounds each page load.
func New(pool *BrowserPool, navTimeout time.Duration, headers map[string]string) *Fetcher {
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	return &Fetcher{pool: pool, timeout: navTimeout, headers: headers}
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "browser"
}

// Fetch loads url in a fresh tab, waits for the route's widgets and returns
// the rendered document.
func (f *Fetcher) Fetch(ctx context.Context, url string, route transport.RouteKind) (*transport.Page, error) {
	start := time.Now()

	bc, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, transport.Classify(url, 0, err)
	}
	defer f.pool.Release(bc)

	// One tab per fetch so event listeners never outlive the request.
	tabCtx, closeTab := chromedp.NewContext(bc.Ctx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	runCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		status   int64
		finalURL string
	)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if status == 0 {
			status = e.Response.Status
			finalURL = e.Response.URL
		}
	})

	var title, html string
	tasks := chromedp.Tasks{network.Enable()}
	if len(f.headers) > 0 {
		h := network.Headers{}
		for k, v := range f.headers {
			h[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(h))
	}
	tasks = append(tasks,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		acceptCookies(),
		waitReady(route),
	)
	if route == transport.RouteCategory {
		tasks = append(tasks, autoScroll())
	}
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, transport.Classify(url, int(statusOf(&mu, &status)), err)
	}

	code := int(statusOf(&mu, &status))
	if code >= 400 {
		return nil, transport.Classify(url, code, nil)
	}
	if transport.IsChallengeTitle(title) {
		fe := transport.NewFetchError(transport.KindBlocked, url, "bot challenge page", nil)
		fe.StatusCode = code
		return nil, fe
	}
	if code == 0 {
		code = 200
	}

	mu.Lock()
	final := finalURL
	mu.Unlock()
	if final == "" {
		final = url
	}

	elapsed := time.Since(start)
	log.Debug().
		Str("url", url).
		Str("route", string(route)).
		Int("status", code).
		Int("bytes", len(html)).
		Dur("elapsed", elapsed).
		Msg("Rendered page")

	return &transport.Page{
		URL:        url,
		FinalURL:   final,
		StatusCode: code,
		HTML:       html,
		Route:      route,
		FetchedAt:  time.Now(),
		Elapsed:    elapsed,
	}, nil
}

func statusOf(mu *sync.Mutex, status *int64) int64 {
	mu.Lock()
	defer mu.Unlock()
	return *status
}

func acceptCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(acceptCookiesScript, &clicked).Do(ctx); err != nil {
			log.Debug().Err(err).Msg("Cookie banner check failed")
			return nil
		}
		if clicked {
			log.Debug().Msg("Accepted cookie banner")
		}
		return nil
	})
}

// waitReady polls for the route's ready marker. Running out of time is not an
// error: the page is extracted as-is and invalid records are dropped later.
func waitReady(route transport.RouteKind) chromedp.Action {
	expr, ok := readyExpr[route]
	if !ok {
		return chromedp.WaitReady("body", chromedp.ByQuery)
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ready bool
		err := chromedp.Poll(expr, &ready,
			chromedp.WithPollingInterval(readyPollInterval),
			chromedp.WithPollingTimeout(readyPollTimeout),
		).Do(ctx)
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			log.Debug().Str("route", string(route)).Msg("Ready marker not found, extracting anyway")
			return nil
		}
		return err
	})
}

// autoScroll triggers lazy-loaded listing cards.
func autoScroll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < scrollSteps; i++ {
			var height int64
			if err := chromedp.Evaluate(scrollScript, &height).Do(ctx); err != nil {
				return err
			}
			select {
			case <-time.After(scrollPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}
