// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/config"
	"github.com/law-makers/catalog/internal/lock"
	"github.com/law-makers/catalog/internal/proxy"
	"github.com/law-makers/catalog/internal/ratelimit"
	"github.com/law-makers/catalog/internal/retry"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/internal/store"
	"github.com/law-makers/catalog/internal/store/postgres"
	"github.com/law-makers/catalog/internal/store/sqlite"
	"github.com/law-makers/catalog/internal/transport"
	"github.com/law-makers/catalog/internal/transport/dynamic"
	"github.com/law-makers/catalog/internal/transport/static"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Store       store.Store
	PageCache   *cache.MemoryCache[*transport.Page]
	BrowserPool *dynamic.BrowserPool
	poolMu      sync.Mutex
	RateLimiter *ratelimit.HostLimiter
	Fetcher     *transport.Guard
	Scraper     *scraper.Scraper
	Locker      lock.Locker
	Catalog     *catalog.Service
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Opens the store and applies its schema
//   - Creates the page cache, rate limiter and circuit breaker
//   - Builds the transport chain behind the Guard
//   - Connects the refresh lock when Redis is configured
//   - Creates the catalog service
//
// The browser pool is started lazily on the first browser fetch. If any step
// fails, resources created so far are released and an error is returned.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogger(cfg)
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	a := &Application{
		Config:    cfg,
		Logger:    &logger,
		startTime: time.Now(),
	}

	st, err := OpenStore(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	a.Store = st
	logger.Debug().Str("driver", cfg.StoreDriver).Msg("Store opened")

	a.PageCache = cache.NewMemoryCache[*transport.Page](cfg.CacheMaxSizeBytes, transport.PageSize)
	a.RateLimiter = ratelimit.NewHostLimiter(float64(cfg.RateLimitPerMinute), cfg.RateLimitBurst, cfg.MinDelay, cfg.MaxDelay)

	policy, err := transport.NewPolicy(cfg.DenyPatterns, cfg.AllowPatterns)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("url policy: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.RetryMaxAttempts
	retryCfg.InitialBackoff = cfg.RetryBaseDelay
	retryCfg.MaxBackoff = cfg.RetryMaxDelay

	a.Fetcher = transport.NewGuard(a.innerFetcher(), transport.GuardOptions{
		Policy:         policy,
		Breaker:        transport.NewBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery),
		Cache:          a.PageCache,
		CacheTTL:       cfg.PageCacheTTL,
		Limiter:        a.RateLimiter,
		MaxConcurrency: cfg.MaxConcurrency,
		Retry:          retryCfg,
	})
	logger.Debug().
		Str("transport", cfg.Transport).
		Int("rate_per_minute", cfg.RateLimitPerMinute).
		Int64("max_concurrency", cfg.MaxConcurrency).
		Msg("Transport initialized")

	a.Scraper = scraper.New(a.Fetcher, cfg.BaseURL, cfg.Locale)

	a.Locker = lock.Noop{}
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedisFromURL(ctx, cfg.RedisURL)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		a.Locker = rl
		logger.Debug().Msg("Redis refresh lock connected")
	}

	a.Catalog, err = catalog.New(catalog.Options{
		Store:          a.Store,
		Source:         a.Scraper,
		Locker:         a.Locker,
		CategoryMaxAge: cfg.CategoryMaxAge,
		ProductMaxAge:  cfg.ProductMaxAge,
		RefreshGrace:   cfg.RefreshGrace,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	logger.Info().Msg("Application initialized successfully")
	return a, nil
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// OpenStore opens the store for driver.
func OpenStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case store.DriverSQLite, "":
		s, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case store.DriverPostgres:
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func (a *Application) innerFetcher() transport.Fetcher {
	cfg := a.Config
	if cfg.Transport == config.TransportHTTP {
		return static.New(static.Options{
			Timeout:   cfg.HTTPTimeout,
			UserAgent: cfg.UserAgent,
			Headers:   cfg.ExtraHeaders,
			Proxies:   proxy.NewProxyPoolWithCooldown(cfg.Proxies, cfg.ProxyCooldown),
		})
	}
	return &lazyBrowser{app: a}
}

// lazyBrowser starts the browser pool on its first fetch, so commands that
// only read the store never launch Chrome.
type lazyBrowser struct {
	app *Application

	mu      sync.Mutex
	fetcher *dynamic.Fetcher
}

func (l *lazyBrowser) Name() string {
	return "browser"
}

func (l *lazyBrowser) Fetch(ctx context.Context, url string, route transport.RouteKind) (*transport.Page, error) {
	l.mu.Lock()
	if l.fetcher == nil {
		if err := l.app.EnsureBrowserPool(ctx); err != nil {
			l.mu.Unlock()
			return nil, transport.NewFetchError(transport.KindTransient, url, "browser unavailable", err)
		}
		l.fetcher = dynamic.New(l.app.BrowserPool, l.app.Config.NavigationTimeout, l.app.Config.ExtraHeaders)
	}
	f := l.fetcher
	l.mu.Unlock()

	return f.Fetch(ctx, url, route)
}

// EnsureBrowserPool lazily creates the browser pool if it has not already been
// initialized. Callers should provide a context with an appropriate timeout.
func (a *Application) EnsureBrowserPool(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return nil
	}

	var proxyURL string
	if len(a.Config.Proxies) > 0 {
		proxyURL = a.Config.Proxies[0]
	}

	logger := a.Logger
	logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := dynamic.NewBrowserPool(dynamic.BrowserPoolOptions{
		Size:       a.Config.BrowserPoolSize,
		Headless:   a.Config.BrowserHeadless,
		UserAgent:  a.Config.UserAgent,
		Proxy:      proxyURL,
		ChromePath: a.Config.ChromePath,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create browser pool on demand")
		return err
	}

	a.BrowserPool = pool
	logger.Info().Int("pool_size", pool.Size()).Str("chrome", pool.ChromePath()).Msg("Browser pool initialized on demand")
	return nil
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Closes the browser pool
//   - Closes the page cache
//   - Closes the Redis lock client
//   - Closes the store
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.poolMu.Lock()
	if a.BrowserPool != nil {
		if err := a.BrowserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
		a.BrowserPool = nil
	}
	a.poolMu.Unlock()

	if a.PageCache != nil {
		a.PageCache.Close()
	}

	if rl, ok := a.Locker.(*lock.Redis); ok {
		if err := rl.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing redis client")
		}
	}

	var storeErr error
	if a.Store != nil {
		if storeErr = a.Store.Close(); storeErr != nil {
			a.Logger.Warn().Err(storeErr).Msg("Error closing store")
		}
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return storeErr
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
