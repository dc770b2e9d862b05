package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format only")
	cmd.PersistentFlags().StringSlice("proxy", nil, "HTTP/SOCKS5 proxy, repeatable (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", DefaultHTTPTimeout.String(), "Set hard timeout for requests")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
	cmd.PersistentFlags().String("transport", "", "Page transport: browser or http")
	cmd.PersistentFlags().String("store", "", "Store driver: sqlite or postgres")
	cmd.PersistentFlags().String("dsn", "", "Store connection string")
	cmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra request header \"Key: Value\", repeatable")
}
