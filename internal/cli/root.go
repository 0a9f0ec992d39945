// Package cli provides the command-line interface for chaturgency.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors keeps Cobra from printing this itself
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	g := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "chaturgency",
		Short: "Rank chat messages by urgency",
		Long: `chaturgency reads exported chat conversations and scores every message
for urgency, so the ones that need an answer now rise to the top.

Each message is scored from:
  - Who sent it (priority contacts)
  - When it was sent (late-night window)
  - What it says (sentiment, urgency phrases, negative words, emoji)

Results come as a ranked table, JSON or CSV, with a score histogram and the
most frequent phrases. Webhooks can be notified when urgent messages show up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&g.LogJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.NewAnalyzeCommand(g))
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand(g))
	rootCmd.AddCommand(commands.NewServeCommand(g))
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
