// Package cli provides the command-line interface for the catalog application.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/config"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/internal/server"
)

// Catalog is what the commands need from catalog.Service.
type Catalog interface {
	server.Catalog
	ScrapeProducts(ctx context.Context, slugs []string, opts scraper.BatchOptions, onResult func(catalog.BatchResult)) map[string]catalog.BatchResult
}

// env is the per-invocation state the commands run against.
type env struct {
	cfg     *config.Config
	catalog Catalog
	close   func(context.Context) error
	// cacheStats reports page cache statistics; nil in tests.
	cacheStats func() map[string]interface{}
}

type ctxKey struct{}

func withEnv(ctx context.Context, e *env) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// envFrom returns the env set up by the root command, or nil before setup.
func envFrom(cmd *cobra.Command) *env {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	e, _ := ctx.Value(ctxKey{}).(*env)
	return e
}
