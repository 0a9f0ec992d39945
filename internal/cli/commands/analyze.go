package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/internal/pipeline"
	"github.com/ccollicutt/chaturgency/pkg/analyzer"
	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/output"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/webhook"
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	Output     string
	TimeRange  string
	Since      string
	Until      string
	Authors    []string
	TopN       int
	DateOrder  string
	Classifier string
	Verbose    bool
	Quiet      bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(g *GlobalOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [export...]",
		Short: "Score chat messages for urgency",
		Long: `Score every message of one or more chat exports for urgency.

Exports are plain-text chat exports or CSV files with message, date, time
and author columns. Without arguments the chat_sources of the configuration
are analyzed. Several exports are merged in timestamp order.

Each message gets an urgency score from 0 to 5 built from:
  - Priority contacts (+2)
  - Late-night timestamps (+1)
  - Sentiment (+0 to +3)
  - Urgency phrases (+1), negative words (+2) and emoji (+1)
  - Negative two- and three-word spans (+1 each)

Exit codes:
  0 - No urgent messages
  1 - Urgent messages found (score >= urgent_threshold)
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|csv)")
	cmd.Flags().StringVar(&opts.TimeRange, "time-range", "", "Limit analysis to messages newer than this (e.g., 24h, 168h)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only messages at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Only messages at or before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.Authors, "author", nil, "Only messages from these authors (can be repeated)")
	cmd.Flags().IntVar(&opts.TopN, "top", analyzer.DefaultTopN, "Number of phrases in the bigram and trigram tables")
	cmd.Flags().StringVar(&opts.DateOrder, "date-order", "", "Override format.date_order (day_first|month_first|auto)")
	cmd.Flags().StringVar(&opts.Classifier, "classifier", "", "Override classifier.backend (lexicon|onnx|http)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show signal contributions and skipped lines")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(webhook.TriggerOnUrgent), "When to fire webhook (on_urgent|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, g *GlobalOptions, opts *AnalyzeOptions) error {
	ExitCode = ExitOK
	ctx := commandContext(cmd)

	cfg, err := g.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := applyAnalyzeOverrides(cfg, opts); err != nil {
		return err
	}
	logger := g.logger(cmd.ErrOrStderr(), cfg)

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	analyzerOpts, err := analyzerOptions(opts, time.Now())
	if err != nil {
		return err
	}

	targets, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.ChatSources
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no chat exports given (pass files or set chat_sources in the config)")
	}
	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return fmt.Errorf("expanding chat sources: %w", err)
	}

	p, release, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	a, err := p.Analyzer(analyzerOpts...)
	if err != nil {
		return fmt.Errorf("creating analyzer: %w", err)
	}

	source, err := p.Open(ctx, files)
	if err != nil {
		return err
	}
	defer source.Close()

	result, err := a.Analyze(ctx, source)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	report := output.NewReport(result, g.ConfigPath)
	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged but don't fail the analysis
	if len(targets) > 0 {
		webhook.NewClient(logger).Notify(ctx, report, targets)
	}

	if report.HasUrgent() {
		ExitCode = ExitUrgent
	}
	return nil
}

// applyAnalyzeOverrides applies the flags that override configuration and
// revalidates it.
func applyAnalyzeOverrides(cfg *config.Config, opts *AnalyzeOptions) error {
	if opts.DateOrder == "" && opts.Classifier == "" {
		return nil
	}
	if opts.DateOrder != "" {
		cfg.Format.DateOrder = opts.DateOrder
	}
	if opts.Classifier != "" {
		cfg.Classifier.Backend = opts.Classifier
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// analyzerOptions turns the filter flags into analyzer options. now anchors
// --time-range and open-ended --since.
func analyzerOptions(opts *AnalyzeOptions, now time.Time) ([]analyzer.AnalyzerOption, error) {
	var out []analyzer.AnalyzerOption

	if opts.TimeRange != "" && (opts.Since != "" || opts.Until != "") {
		return nil, fmt.Errorf("--time-range cannot be combined with --since or --until")
	}

	// Export timestamps carry the sender's wall clock as UTC.
	wallNow := pipeline.WallClock(now)

	switch {
	case opts.TimeRange != "":
		duration, err := time.ParseDuration(opts.TimeRange)
		if err != nil {
			return nil, fmt.Errorf("invalid time-range %q: %w", opts.TimeRange, err)
		}
		out = append(out, analyzer.WithTimeRange(wallNow.Add(-duration), wallNow))
	case opts.Since != "" || opts.Until != "":
		start, end, err := pipeline.Window(opts.Since, opts.Until, now)
		if err != nil {
			return nil, err
		}
		out = append(out, analyzer.WithTimeRange(start, end))
	}

	if len(opts.Authors) > 0 {
		out = append(out, analyzer.WithAuthorFilter(opts.Authors))
	}
	if opts.TopN > 0 {
		out = append(out, analyzer.WithTopN(opts.TopN))
	}

	return out, nil
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) ([]webhook.Target, error) {
	targets := cfg.WebhookTargets()

	if opts.WebhookURL == "" {
		return targets, nil
	}

	trigger := webhook.Trigger(opts.WebhookTrigger)
	if !trigger.Valid() {
		return nil, fmt.Errorf("invalid webhook-trigger %q (use on_urgent, always, or never)", opts.WebhookTrigger)
	}
	if trigger == "" {
		trigger = webhook.TriggerOnUrgent
	}

	return append(targets, webhook.Target{
		Name:    "cli",
		URL:     opts.WebhookURL,
		Token:   opts.WebhookToken,
		Trigger: trigger,
		Timeout: config.DefaultWebhookTimeout,
	}), nil
}
