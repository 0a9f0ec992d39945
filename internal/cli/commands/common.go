package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/internal/logging"
	"github.com/ccollicutt/chaturgency/internal/pipeline"
	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK     = 0
	ExitUrgent = 1
	ExitError  = 2
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	LogJSON    bool
}

// loadConfig loads the --config file, or the defaults when none was given.
func (g *GlobalOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// logger installs the process logger on w. The --log-level flag wins over
// the configured level.
func (g *GlobalOptions) logger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := g.LogLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	return logging.Init(w, g.LogJSON, logging.ParseLevel(level))
}

// commandContext returns the command's context, or a background one when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildPipeline builds the classifier and the pipeline around it. The
// returned function releases the classifier.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	c, err := sentiment.New(cfg.SentimentConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s classifier: %w", cfg.Classifier.Backend, err)
	}
	release := func() {
		if err := sentiment.Close(c); err != nil {
			logger.Warn("closing classifier", "error", err)
		}
	}
	return pipeline.New(cfg, c, logger), release, nil
}
