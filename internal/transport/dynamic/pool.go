package dynamic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool is closed")

// BrowserPool keeps warm browser contexts sharing one Chrome process.
type BrowserPool struct {
	size        int
	contexts    chan *BrowserContext
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
	chromePath  string
}

// BrowserContext wraps a chromedp context with its cancel function
type BrowserContext struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// BrowserPoolOptions configures the browser pool
type BrowserPoolOptions struct {
	Size       int
	Headless   bool
	UserAgent  string
	Proxy      string
	ChromePath string
	ExtraArgs  []chromedp.ExecAllocatorOption
}

// NewBrowserPool starts Chrome and pre-creates Size browser contexts.
func NewBrowserPool(opts BrowserPoolOptions) (*BrowserPool, error) {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Size > 10 {
		opts.Size = 10 // Max 10 contexts to avoid resource exhaustion
	}

	log.Debug().Int("size", opts.Size).Msg("Creating browser pool")

	chromePath := FindChrome(opts.ChromePath)

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("lang", "en-GB"),
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	allocOpts = append(allocOpts, opts.ExtraArgs...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	pool := &BrowserPool{
		size:        opts.Size,
		contexts:    make(chan *BrowserContext, opts.Size),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		chromePath:  chromePath,
	}

	for i := 0; i < opts.Size; i++ {
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// Starts the browser process on first use.
		if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
			browserCancel()
			pool.Close()
			return nil, fmt.Errorf("failed to warm up browser context %d: %w", i, err)
		}

		pool.contexts <- &BrowserContext{Ctx: browserCtx, Cancel: browserCancel}
		log.Debug().Int("context_id", i).Msg("Browser context initialized")
	}

	log.Info().Int("pool_size", opts.Size).Str("chrome", chromePath).Msg("Browser pool ready")

	return pool, nil
}

// Acquire takes a browser context from the pool, blocking until one is free
// or ctx is done.
func (bp *BrowserPool) Acquire(ctx context.Context) (*BrowserContext, error) {
	select {
	case bc, ok := <-bp.contexts:
		if !ok {
			return nil, ErrPoolClosed
		}
		bp.mu.Lock()
		defer bp.mu.Unlock()
		if bp.closed {
			bc.Cancel()
			return nil, ErrPoolClosed
		}
		return bc, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser context: %w", ctx.Err())
	}
}

// Release returns a browser context to the pool
func (bp *BrowserPool) Release(bc *BrowserContext) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		bc.Cancel()
		return
	}

	select {
	case bp.contexts <- bc:
	default:
		bc.Cancel()
		log.Warn().Msg("Browser pool full, discarding context")
	}
}

// Close shuts down all browser contexts and the allocator
func (bp *BrowserPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.closed = true

	close(bp.contexts)
	for bc := range bp.contexts {
		bc.Cancel()
	}
	bp.allocCancel()

	log.Info().Msg("Browser pool closed")
	return nil
}

// Size returns the pool size
func (bp *BrowserPool) Size() int {
	return bp.size
}

// Available returns the number of idle contexts in the pool
func (bp *BrowserPool) Available() int {
	return len(bp.contexts)
}

// ChromePath returns the executable the pool launched, or "" for the chromedp default.
func (bp *BrowserPool) ChromePath() string {
	return bp.chromePath
}
