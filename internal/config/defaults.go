package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultNavigationTimeout = 60 * time.Second
	DefaultProxyCooldown     = 5 * time.Minute

	DefaultTransport          = TransportBrowser
	DefaultBaseURL            = "https://www.worldofbooks.com"
	DefaultLocale             = "en-gb"
	DefaultRateLimitPerMinute = 10
	DefaultRateLimitBurst     = 1
	DefaultMinDelay           = 2 * time.Second
	DefaultMaxDelay           = 5 * time.Second
	DefaultMaxConcurrency     = 1
	DefaultRetryMaxAttempts   = 3
	DefaultRetryBaseDelay     = 2 * time.Second
	DefaultRetryMaxDelay      = 30 * time.Second
	DefaultBreakerThreshold   = 5
	DefaultBreakerRecovery    = 5 * time.Minute

	DefaultBrowserPoolSize    = 1
	DefaultMaxBrowserPoolSize = 10
	DefaultBrowserHeadless    = true

	DefaultPageCacheTTL      = 30 * time.Second
	DefaultCacheMaxSizeBytes = 100 * 1024 * 1024 // 100MB

	DefaultCategoryMaxAge = 24 * time.Hour
	DefaultProductMaxAge  = 24 * time.Hour
	DefaultRefreshGrace   = 10 * time.Second

	DefaultBatchSize   = 3
	DefaultBatchDelay  = 5 * time.Second
	DefaultBatchJitter = 2 * time.Second

	DefaultStoreDriver = "sqlite"
	DefaultStoreDSN    = "file:catalog.db"

	DefaultListenAddr     = ":3000"
	DefaultRequestTimeout = 2 * time.Minute
)

// Transport names.
const (
	TransportBrowser = "browser"
	TransportHTTP    = "http"
)
