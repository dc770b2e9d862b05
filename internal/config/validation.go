package config

import (
	"fmt"

	"github.com/law-makers/catalog/internal/store"
	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPoolSize {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPoolSize)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be >= 1")
	}
	if c.ProxyCooldown <= 0 {
		return fmt.Errorf("proxy cooldown must be > 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if err := urlutil.ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	if c.MinDelay < 0 || c.MinDelay > c.MaxDelay {
		return fmt.Errorf("min delay %s must be between 0 and max delay %s", c.MinDelay, c.MaxDelay)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be > 0 requests per minute")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1")
	}
	switch c.Transport {
	case TransportBrowser, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportBrowser, TransportHTTP)
	}
	switch c.StoreDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.StoreDriver, store.DriverSQLite, store.DriverPostgres)
	}
	if c.StoreDriver == store.DriverPostgres && c.StoreDSN == "" {
		return fmt.Errorf("postgres store requires a dsn")
	}
	return nil
}
