package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a chaturgency configuration file without running analysis.

Checks:
  - YAML syntax
  - Date order, late-night window and score bounds
  - Classifier backend settings
  - Webhook URLs and triggers
  - Chat source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	s := &cfg.Scoring
	fmt.Fprintf(out, "\nConfiguration valid!\n")
	fmt.Fprintf(out, "  Chat sources:     %d pattern(s)\n", len(cfg.ChatSources))
	fmt.Fprintf(out, "  Date order:       %s\n", cfg.Format.DateOrder)
	fmt.Fprintf(out, "  Classifier:       %s\n", cfg.Classifier.Backend)
	fmt.Fprintf(out, "  Late-night:       %s-%s\n", s.LateStart, s.EarlyEnd)
	fmt.Fprintf(out, "  Urgent threshold: %d/%d\n", s.UrgentThreshold, s.MaxScore)
	fmt.Fprintf(out, "  Webhooks:         %d\n", len(cfg.Webhooks))

	if len(s.PriorityAuthors) > 0 {
		fmt.Fprintf(out, "\nPriority authors:\n")
		for i, a := range s.PriorityAuthors {
			fmt.Fprintf(out, "  %d. %s\n", i+1, a)
		}
	}

	if len(cfg.ChatSources) == 0 {
		fmt.Fprintf(out, "\nNo chat_sources set: pass exports to analyze as arguments\n")
		return nil
	}

	files, err := parser.ExpandGlobs(cfg.ChatSources)
	if err != nil {
		fmt.Fprintf(out, "\nWarning: Error expanding chat source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Fprintf(out, "\nWarning: No files match chat source patterns\n")
	} else {
		fmt.Fprintf(out, "\nChat exports matched: %d\n", len(files))
		for _, f := range files {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}

	return nil
}
