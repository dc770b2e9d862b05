// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/pkg/models"
)

// Catalog is the part of catalog.Service the API serves.
type Catalog interface {
	GetAllCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, slug string, page, limit int) (*catalog.CategoryWithProducts, error)
	RefreshCategory(ctx context.Context, slug string) (*catalog.CategoryWithProducts, error)
	GetProduct(ctx context.Context, slug string) (*catalog.ProductWithDetail, error)
	RefreshProduct(ctx context.Context, slug string) (*catalog.ProductWithDetail, error)
	SearchProducts(ctx context.Context, query string, page, limit int) (*catalog.Paginated[catalog.ProductSummary], error)
	ListJobs(ctx context.Context, limit int) ([]models.ScrapeJob, error)
	Health(ctx context.Context) scraper.Health
}

// Options configures a Server.
type Options struct {
	// AllowedOrigin enables CORS for one browser origin. Empty disables CORS.
	AllowedOrigin string
	// RequestTimeout bounds each request. Zero means no limit.
	RequestTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
	// CacheStats, when set, adds page cache statistics to /health.
	CacheStats func() map[string]interface{}
}

// Server routes API requests to a Catalog.
type Server struct {
	catalog Catalog
	opts    Options
	started time.Time
	mux     *http.ServeMux
}

// New creates a Server.
func New(c Catalog, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{
		catalog: c,
		opts:    opts,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /catalog/categories", s.handleCategories)
	s.mux.HandleFunc("GET /catalog/category/{slug}", s.handleCategory)
	s.mux.HandleFunc("POST /catalog/category/{slug}/refresh", s.handleRefreshCategory)
	s.mux.HandleFunc("GET /catalog/product/{slug}", s.handleProduct)
	s.mux.HandleFunc("POST /catalog/product/{slug}/refresh", s.handleRefreshProduct)
	s.mux.HandleFunc("GET /catalog/search", s.handleSearch)
	s.mux.HandleFunc("GET /catalog/jobs", s.handleJobs)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the API handler with its middleware. It accepts HTTP/2
// without TLS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.opts.RequestTimeout > 0 {
		h = withTimeout(h, s.opts.RequestTimeout)
	}
	h = withCORS(h, s.opts.AllowedOrigin)
	h = withRecover(h)
	h = withRequestLog(h)
	return h2c.NewHandler(h, &http2.Server{})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Catalog API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down catalog API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
