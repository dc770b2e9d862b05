package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog HTTP API",
		Long: `Serve the catalog over HTTP until interrupted.

Routes live under /catalog; GET /health checks the upstream site.`,
		Example: `  catalog serve
  catalog serve --addr :8080 --transport http`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = e.cfg.ListenAddr
			}

			srv := server.New(e.catalog, server.Options{
				AllowedOrigin:  e.cfg.AllowedOrigin,
				RequestTimeout: e.cfg.RequestTimeout,
				CacheStats:     e.cacheStats,
			})
			log.Info().Str("addr", addr).Msg("Serving catalog API")
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, :3000)")
	return cmd
}
