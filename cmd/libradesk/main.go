// cmd/libradesk/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"libradesk/internal/app"
	"libradesk/internal/config"
	"libradesk/internal/telemetry"
)

// cli carries what every subcommand shares.
type cli struct {
	cfg       *config.Config
	logger    *slog.Logger
	providers *telemetry.Providers
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var verbose bool

	root := &cobra.Command{
		Use:           "libradesk",
		Short:         "Library desk: books, users, loans and the ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = config.NewConfig()
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(c.logger)

			providers, err := telemetry.Setup(cmd.Context(), c.cfg.Telemetry.ServiceName, c.cfg.Telemetry.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("failed to set up telemetry: %w", err)
			}
			c.providers = providers
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.providers == nil {
				return nil
			}
			return c.providers.Shutdown()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	root.PersistentFlags().String("api", "", "record API base URL (overrides API_BASE_URL)")

	root.AddCommand(
		c.serveCmd(),
		c.listCmd(),
		c.borrowCmd(),
		c.returnCmd(),
		c.sweepCmd(),
	)
	return root
}

// session loads every collection from the record API.
func (c *cli) session(cmd *cobra.Command) (*app.Session, error) {
	if api, _ := cmd.Flags().GetString("api"); api != "" {
		c.cfg.API.BaseURL = api
	}
	s, err := app.NewSession(
		app.RemoteSources(c.cfg.API, c.providers.TracerProvider),
		c.cfg,
		app.WithLogger(c.logger),
		app.WithTracerProvider(c.providers.TracerProvider),
	)
	if err != nil {
		return nil, err
	}
	if err := s.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to load records from %s: %w", c.cfg.API.BaseURL, err)
	}
	return s, nil
}
