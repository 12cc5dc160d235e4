// cmd/libradesk/serve.go
package main

import (
	"github.com/spf13/cobra"

	"libradesk/internal/backend"
)

func (c *cli) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record API (memory, or Postgres when DATABASE_URL is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.Server
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return backend.Serve(cmd.Context(), cfg, c.logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
