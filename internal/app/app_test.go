package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/law-makers/catalog/internal/config"
	"github.com/law-makers/catalog/internal/lock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.StoreDSN = ":memory:"
	cfg.LogLevel = "error"
	return cfg
}

func TestNew_HTTPTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport = config.TransportHTTP
	ctx := context.Background()

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	if a.Catalog == nil || a.Scraper == nil || a.Store == nil {
		t.Fatal("expected catalog, scraper and store to be wired")
	}
	if got := a.Fetcher.Name(); got != "http" {
		t.Errorf("fetcher = %q, want http", got)
	}
	if _, ok := a.Locker.(lock.Noop); !ok {
		t.Errorf("expected single-replica locker, got %T", a.Locker)
	}
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("global level = %s", zerolog.GlobalLevel())
	}
	if err := a.Store.Ping(ctx); err != nil {
		t.Errorf("store ping: %v", err)
	}
}

func TestNew_BrowserTransportIsLazy(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	if a.BrowserPool != nil {
		t.Error("browser pool must not start before the first fetch")
	}
	if got := a.Fetcher.Name(); got != "browser" {
		t.Errorf("fetcher = %q, want browser", got)
	}
}

func TestNew_BadPolicyPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.DenyPatterns = []string{"("}

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for an invalid deny pattern")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := OpenStore(context.Background(), "mongo", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Error("expected error for nil config")
	}
}
