package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/internal/server"
)

// ServeOptions holds command-line options for the serve command.
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(g *GlobalOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the urgency API over HTTP",
		Long: `Serve the urgency pipeline as an HTTP JSON API.

Endpoints:
  GET  /healthz          Liveness and classifier name
  POST /api/v1/analyze   Score a whole export (text, or CSV with Content-Type text/csv)
  POST /api/v1/assess    Score one message: {"author", "timestamp", "message"}

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, g *GlobalOptions, opts *ServeOptions) error {
	cfg, err := g.loadConfig(ctx)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	logger := g.logger(cmd.ErrOrStderr(), cfg)

	p, release, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	return server.New(p, Version, logger).Start(ctx)
}
