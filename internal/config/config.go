package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/law-makers/catalog/internal/utils/headers"
)

// EnvPrefix prefixes every environment variable, e.g. CATALOG_STORE_DSN.
const EnvPrefix = "CATALOG"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP/Scraping
	HTTPTimeout       time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	Proxies           []string
	ProxyCooldown     time.Duration
	ExtraHeaders      map[string]string

	// Transport
	Transport          string
	BaseURL            string
	Locale             string
	RateLimitPerMinute int
	RateLimitBurst     int
	MinDelay           time.Duration
	MaxDelay           time.Duration
	MaxConcurrency     int64
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	BreakerThreshold   int
	BreakerRecovery    time.Duration
	DenyPatterns       []string
	AllowPatterns      []string

	// Browser Pool
	BrowserPoolSize int
	BrowserHeadless bool
	ChromePath      string

	// Caching
	PageCacheTTL      time.Duration
	CacheMaxSizeBytes int64

	// Freshness
	CategoryMaxAge time.Duration
	ProductMaxAge  time.Duration
	RefreshGrace   time.Duration

	// Batch scraping
	BatchSize   int
	BatchDelay  time.Duration
	BatchJitter time.Duration

	// Storage
	StoreDriver string
	StoreDSN    string

	// Coordination across replicas; empty runs single-replica.
	RedisURL string

	// API server
	ListenAddr     string
	AllowedOrigin  string
	RequestTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json_log", DefaultJSONLog)

	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("navigation_timeout", DefaultNavigationTimeout)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("proxies", []string{})
	v.SetDefault("proxy_cooldown", DefaultProxyCooldown)
	v.SetDefault("headers", []string{})

	v.SetDefault("transport", DefaultTransport)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("locale", DefaultLocale)
	v.SetDefault("rate_limit_per_minute", DefaultRateLimitPerMinute)
	v.SetDefault("rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("min_delay", DefaultMinDelay)
	v.SetDefault("max_delay", DefaultMaxDelay)
	v.SetDefault("max_concurrency", DefaultMaxConcurrency)
	v.SetDefault("retry_max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("retry_max_delay", DefaultRetryMaxDelay)
	v.SetDefault("breaker_threshold", DefaultBreakerThreshold)
	v.SetDefault("breaker_recovery", DefaultBreakerRecovery)
	v.SetDefault("deny_patterns", []string{})
	v.SetDefault("allow_patterns", []string{})

	v.SetDefault("browser_pool_size", DefaultBrowserPoolSize)
	v.SetDefault("browser_headless", DefaultBrowserHeadless)
	v.SetDefault("chrome_path", "")

	v.SetDefault("page_cache_ttl", DefaultPageCacheTTL)
	v.SetDefault("cache_max_size_bytes", DefaultCacheMaxSizeBytes)

	v.SetDefault("category_max_age", DefaultCategoryMaxAge)
	v.SetDefault("product_max_age", DefaultProductMaxAge)
	v.SetDefault("refresh_grace", DefaultRefreshGrace)

	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("batch_delay", DefaultBatchDelay)
	v.SetDefault("batch_jitter", DefaultBatchJitter)

	v.SetDefault("store_driver", DefaultStoreDriver)
	v.SetDefault("store_dsn", DefaultStoreDSN)
	v.SetDefault("redis_url", "")

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("allowed_origin", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := flagValue(cmd, "config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	applyFlags(cfg, cmd)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		LogLevel: v.GetString("log_level"),
		JSONLog:  v.GetBool("json_log"),

		HTTPTimeout:       v.GetDuration("http_timeout"),
		NavigationTimeout: v.GetDuration("navigation_timeout"),
		UserAgent:         v.GetString("user_agent"),
		Proxies:           stringList(v, "proxies"),
		ProxyCooldown:     v.GetDuration("proxy_cooldown"),
		ExtraHeaders:      headers.ParseHeaders(stringList(v, "headers")),

		Transport:          v.GetString("transport"),
		BaseURL:            v.GetString("base_url"),
		Locale:             v.GetString("locale"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
		MinDelay:           v.GetDuration("min_delay"),
		MaxDelay:           v.GetDuration("max_delay"),
		MaxConcurrency:     v.GetInt64("max_concurrency"),
		RetryMaxAttempts:   v.GetInt("retry_max_attempts"),
		RetryBaseDelay:     v.GetDuration("retry_base_delay"),
		RetryMaxDelay:      v.GetDuration("retry_max_delay"),
		BreakerThreshold:   v.GetInt("breaker_threshold"),
		BreakerRecovery:    v.GetDuration("breaker_recovery"),
		DenyPatterns:       stringList(v, "deny_patterns"),
		AllowPatterns:      stringList(v, "allow_patterns"),

		BrowserPoolSize: v.GetInt("browser_pool_size"),
		BrowserHeadless: v.GetBool("browser_headless"),
		ChromePath:      v.GetString("chrome_path"),

		PageCacheTTL:      v.GetDuration("page_cache_ttl"),
		CacheMaxSizeBytes: v.GetInt64("cache_max_size_bytes"),

		CategoryMaxAge: v.GetDuration("category_max_age"),
		ProductMaxAge:  v.GetDuration("product_max_age"),
		RefreshGrace:   v.GetDuration("refresh_grace"),

		BatchSize:   v.GetInt("batch_size"),
		BatchDelay:  v.GetDuration("batch_delay"),
		BatchJitter: v.GetDuration("batch_jitter"),

		StoreDriver: v.GetString("store_driver"),
		StoreDSN:    v.GetString("store_dsn"),
		RedisURL:    v.GetString("redis_url"),

		ListenAddr:     v.GetString("listen_addr"),
		AllowedOrigin:  v.GetString("allowed_origin"),
		RequestTimeout: v.GetDuration("request_timeout"),
	}
}

// stringList reads a list from a config file array or a comma separated
// environment value.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return v.GetStringSlice(key)
}

// applyFlags overlays flags the user set explicitly.
func applyFlags(cfg *Config, cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	if s := flagValue(cmd, "user-agent"); s != "" {
		cfg.UserAgent = s
	}
	if f := cmd.Flags().Lookup("proxy"); f != nil && f.Changed {
		if proxies, err := cmd.Flags().GetStringSlice("proxy"); err == nil {
			cfg.Proxies = proxies
		}
	}
	if s := flagValue(cmd, "timeout"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if s := flagValue(cmd, "transport"); s != "" {
		cfg.Transport = s
	}
	if s := flagValue(cmd, "store"); s != "" {
		cfg.StoreDriver = s
	}
	if s := flagValue(cmd, "dsn"); s != "" {
		cfg.StoreDSN = s
	}
	if f := cmd.Flags().Lookup("header"); f != nil && f.Changed {
		if hs, err := cmd.Flags().GetStringArray("header"); err == nil {
			for k, v := range headers.ParseHeaders(hs) {
				cfg.ExtraHeaders[k] = v
			}
		}
	}
	if flagValue(cmd, "json") == "true" {
		cfg.JSONLog = true
	}
	if flagValue(cmd, "quiet") == "true" {
		cfg.LogLevel = "error"
	}
	if flagValue(cmd, "verbose") == "true" {
		cfg.LogLevel = "debug"
	}
}

// flagValue returns the value of a flag the user set, or "".
func flagValue(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return ""
	}
	return f.Value.String()
}
