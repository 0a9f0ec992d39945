package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <export>",
		Short: "Detect the date order of a chat export",
		Long: `Analyze a chat export to work out whether its dates are day-first
(25/12/2023) or month-first (12/25/2023).

Samples lines from the export and parses them under each known order. A
line with a day above 12 settles the question; when no sampled line does,
day-first is reported with an ambiguity note.

CSV exports are checked for the required columns (message, date, time,
author) and their date column is sampled.

Optionally generates a starter config file with --write-config.

Example:
  chaturgency detect chat.txt
  chaturgency detect --sample 500 chat.txt
  chaturgency detect --write-config chaturgency.yaml chat.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 200, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all matching formats, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	exportFile := args[0]
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}

	if _, err := os.Stat(exportFile); os.IsNotExist(err) {
		return fmt.Errorf("chat export not found: %s", exportFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))
	result, err := d.DetectFromFile(ctx, exportFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(out, result, exportFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	if opts.Output == "json" {
		return outputDetectJSON(out, result, exportFile, opts)
	}
	outputDetectText(out, result, exportFile, opts)
	return nil
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, exportFile string, opts *DetectOptions) {
	fmt.Fprintln(w, "=== Date Order Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s (%s export)\n", exportFile, result.Kind)

	if len(result.MissingColumns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Missing required columns: %v\n", result.MissingColumns)
		fmt.Fprintln(w, "Tabular exports need message, date, time and author columns.")
		return
	}

	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines with timestamps: %d\n", result.ParsedLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No chat export format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: lines should look like \"25/12/2023, 9:05 p. m. - Author: message\".")
		return
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Format: %s\n", best.Format.Name)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	fmt.Fprintf(w, "Parsed as: %s\n", best.ParsedTime.Format("2006-01-02 15:04"))
	fmt.Fprintln(w)

	if result.AmbiguityNote != "" {
		fmt.Fprintf(w, "Note: %s\n", result.AmbiguityNote)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "format:")
	fmt.Fprintf(w, "  date_order: %s\n", best.Format.DateOrder)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative formats detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   date_order: %s\n", m.Format.DateOrder)
		}
		fmt.Fprintln(w)
	}
}

// JSONMatch represents a format match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	DateOrder  string  `json:"date_order"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File           string      `json:"file"`
	Kind           string      `json:"kind"`
	DateOrder      string      `json:"date_order"`
	Matches        []JSONMatch `json:"matches"`
	SampledLines   int         `json:"sampled_lines"`
	ParsedLines    int         `json:"parsed_lines"`
	AmbiguityNote  string      `json:"ambiguity_note,omitempty"`
	MissingColumns []string    `json:"missing_columns,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, exportFile string, opts *DetectOptions) error {
	output := JSONOutput{
		File:           exportFile,
		Kind:           result.Kind,
		DateOrder:      string(result.DateOrder()),
		SampledLines:   result.SampledLines,
		ParsedLines:    result.ParsedLines,
		AmbiguityNote:  result.AmbiguityNote,
		MissingColumns: result.MissingColumns,
		Matches:        make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1]
	}

	for _, m := range matches {
		output.Matches = append(output.Matches, JSONMatch{
			Name:       m.Format.Name,
			DateOrder:  string(m.Format.DateOrder),
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			SampleLine: m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// writeStarterConfig generates a starter config file with the detected
// date order.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, exportFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if len(result.MissingColumns) > 0 {
		return fmt.Errorf("cannot generate config: export is missing columns %v", result.MissingColumns)
	}
	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no chat export format detected")
	}

	content, err := generateStarterConfig(exportFile, result.BestMatch())
	if err != nil {
		return err
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig renders the default configuration with the export
// and its detected date order filled in.
func generateStarterConfig(exportFile string, match *detector.FormatMatch) ([]byte, error) {
	absExport := exportFile
	if abs, err := filepath.Abs(exportFile); err == nil {
		absExport = abs
	}

	cfg := config.DefaultConfig()
	cfg.ChatSources = []string{absExport}
	cfg.Format.DateOrder = string(match.Format.DateOrder)

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}

	header := fmt.Sprintf(`# chaturgency configuration
# Generated by: chaturgency detect
# Detected format: %s (%.0f%% confidence)
#
# Add more exports or use globs under chat_sources, and list the contacts
# whose messages matter most under scoring.priority_authors.

`, match.Format.Name, match.Confidence*100)

	return append([]byte(header), body...), nil
}
