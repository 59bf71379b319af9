package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		maxSteps int
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the effort and optimization HTTP API",
		Long: `Serve the effort and optimization HTTP API.

Endpoints:
  GET  /healthz
  GET  /api/v1/models
  GET  /api/v1/layouts
  POST /api/v1/effort
  POST /api/v1/optimize
  GET  /api/v1/runs
  GET  /api/v1/runs/{id}

The cache and run store are taken from the config file; with a Redis cache
and a MongoDB store several servers can share results and run history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd.Flags().Changed("addr"), &c.cfg.Server.Addr, addr)
			override(cmd.Flags().Changed("max-steps"), &c.cfg.Server.MaxSteps, maxSteps)
			return c.runServe(cmd.Context(), noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&maxSteps, "max-steps", server.DefaultMaxSteps, "largest accepted optimization")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	store, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	if store != nil {
		defer store.Close()
	} else {
		c.Logger.Info("run store disabled, run routes answer 501")
	}

	srv := server.New(server.Options{
		Runner:   runner,
		Store:    store,
		Logger:   c.Logger,
		MaxSteps: c.cfg.Server.MaxSteps,
	})
	return srv.ListenAndServe(ctx, c.cfg.Server.Addr)
}
