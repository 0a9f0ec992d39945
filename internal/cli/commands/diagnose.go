package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/chaturgency/internal/pipeline"
	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/detector"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // StatusOK, StatusWarning or StatusError
	Message  string
	Details  []string
	Suggests []string
}

// classifierProbe is classified once to check the backend answers.
const classifierProbe = "necesito ayuda urgente"

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand(g *GlobalOptions) *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [export...]",
		Short: "Diagnose configuration and chat export issues",
		Long: `Diagnose common configuration and chat export problems.

This command checks:
- Config file syntax and structure (when --config is given)
- Sentiment classifier availability
- Chat export existence and date order
- How many lines of each export parse, and why the rest were skipped
- Webhook configuration (and connectivity with -v)

Without arguments the chat_sources of the configuration are checked.

Example:
  chaturgency diagnose chat.txt
  chaturgency -c chaturgency.yaml diagnose -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), g, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, out io.Writer, g *GlobalOptions, args []string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Config file
	var cfg *config.Config
	if g.ConfigPath != "" {
		result := checkConfigExists(g.ConfigPath)
		results = append(results, result)
		if result.Status == StatusError {
			printDiagnostics(out, results, opts)
			return nil
		}

		var parsed DiagnosticResult
		cfg, parsed = checkConfigParseable(ctx, g.ConfigPath)
		results = append(results, parsed)
		if parsed.Status == StatusError {
			printDiagnostics(out, results, opts)
			return nil
		}
	} else {
		var err error
		if cfg, err = config.LoadOrDefault(ctx, ""); err != nil {
			results = append(results, DiagnosticResult{
				Check:    "Config",
				Status:   StatusError,
				Message:  fmt.Sprintf("Default configuration rejected: %v", err),
				Suggests: []string{"Check the CHATURGENCY_* environment variables"},
			})
			printDiagnostics(out, results, opts)
			return nil
		}
		results = append(results, DiagnosticResult{
			Check:   "Config",
			Status:  StatusOK,
			Message: "No config file given, using defaults",
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 2. Classifier
	results = append(results, checkClassifier(ctx, cfg, logger))

	// 3. Chat exports
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.ChatSources
	}
	sourceResults, files := checkChatSources(patterns)
	results = append(results, sourceResults...)

	// 4. Date order and parse statistics per export
	p := pipeline.New(cfg, sentiment.NewLexicon(), logger)
	for _, file := range files {
		results = append(results, checkExport(ctx, p, file, opts)...)
	}

	// 5. Webhooks
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(out, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'chaturgency detect <export> --write-config config.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'chaturgency detect <export> --write-config config.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%s)", path, humanize.Bytes(uint64(info.Size())))
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = StatusOK
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Chat sources: %d", len(cfg.ChatSources)),
		fmt.Sprintf("Date order: %s", cfg.Format.DateOrder),
		fmt.Sprintf("Priority authors: %d", len(cfg.Scoring.PriorityAuthors)),
		fmt.Sprintf("Urgent threshold: %d/%d", cfg.Scoring.UrgentThreshold, cfg.Scoring.MaxScore),
	}
	return cfg, result
}

// checkClassifier builds the configured backend and classifies a probe.
func checkClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Classifier: %s", cfg.Classifier.Backend),
	}

	c, err := sentiment.New(cfg.SentimentConfig(), logger)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot build classifier: %v", err)
		result.Suggests = classifierHints(cfg.Classifier.Backend)
		return result
	}
	defer func() { _ = sentiment.Close(c) }()

	start := time.Now()
	r, err := c.Classify(ctx, classifierProbe)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Classifier did not answer: %v", err)
		result.Suggests = classifierHints(cfg.Classifier.Backend)
		if !cfg.Classifier.Fallback {
			result.Suggests = append(result.Suggests, "Set classifier.fallback: true to fall back to the lexicon")
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%s answered in %s", c.Name(), time.Since(start).Round(time.Millisecond))
	result.Details = []string{
		fmt.Sprintf("Probe %q: %s", classifierProbe, r),
	}
	if cfg.Classifier.CachePath != "" {
		result.Details = append(result.Details, fmt.Sprintf("Cache: %s", cfg.Classifier.CachePath))
	}
	return result
}

func classifierHints(backend string) []string {
	switch backend {
	case sentiment.BackendONNX:
		return []string{
			"Check classifier.onnx.model_path and vocab_path",
			"Set classifier.onnx.library_path to the onnxruntime shared library",
		}
	case sentiment.BackendHTTP:
		return []string{
			"Check classifier.http.url is reachable",
			"Check classifier.http.token if the endpoint needs auth",
		}
	default:
		return nil
	}
}

// checkChatSources checks each pattern and returns the files it matched.
func checkChatSources(patterns []string) ([]DiagnosticResult, []string) {
	results := []DiagnosticResult{}

	if len(patterns) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Chat Sources",
			Status:  StatusError,
			Message: "No chat exports given",
			Suggests: []string{
				"Pass export files as arguments",
				"Or add a chat_sources section to your config",
			},
		})
		return results, nil
	}

	var files []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}

	for _, source := range patterns {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Chat Source: %s", source),
		}

		if strings.ContainsAny(source, "*?[") {
			matches, err := filepath.Glob(source)
			switch {
			case err != nil:
				result.Status = StatusError
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			case len(matches) == 0:
				result.Status = StatusWarning
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the exports exist at this path",
					"Verify the glob pattern syntax",
				}
			default:
				result.Status = StatusOK
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				for _, m := range matches {
					add(m)
				}
			}
			results = append(results, result)
			continue
		}

		info, err := os.Stat(source)
		switch {
		case os.IsNotExist(err):
			result.Status = StatusError
			result.Message = "File does not exist"
			result.Suggests = []string{"Check if the export path is correct"}
		case err != nil:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot access file: %v", err)
			result.Suggests = []string{"Check file permissions"}
		case info.IsDir():
			result.Status = StatusError
			result.Message = "Path is a directory, not a file"
			result.Suggests = []string{
				"Use a glob pattern to match files in directory",
				"Example: exports/*.txt",
			}
		case info.Size() == 0:
			result.Status = StatusWarning
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("File exists (%s)", humanize.Bytes(uint64(info.Size())))
			add(source)
		}
		results = append(results, result)
	}

	if len(files) == 0 {
		results = append(results, DiagnosticResult{
			Check:    "Chat Exports Summary",
			Status:   StatusError,
			Message:  "No accessible chat exports found",
			Suggests: []string{"Ensure at least one export exists and is readable"},
		})
	}

	return results, files
}

// checkExport detects the date order of an export and parses it to report
// how many lines produced messages.
func checkExport(ctx context.Context, p *pipeline.Pipeline, file string, opts *DiagnoseOptions) []DiagnosticResult {
	name := filepath.Base(file)
	results := []DiagnosticResult{}

	det, err := detector.New().DetectFromFile(ctx, file)
	if err != nil {
		return append(results, DiagnosticResult{
			Check:   fmt.Sprintf("Date Order: %s", name),
			Status:  StatusWarning,
			Message: fmt.Sprintf("Cannot read file: %v", err),
		})
	}
	results = append(results, dateOrderResult(name, p.Config(), det))

	result := DiagnosticResult{
		Check: fmt.Sprintf("Parse: %s", name),
	}

	parsed, err := parseExport(ctx, p, file)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Parse failed: %v", err)
		return append(results, result)
	}

	total := len(parsed.Messages) + len(parsed.Skipped)
	switch {
	case len(parsed.Messages) == 0:
		result.Status = StatusError
		result.Message = fmt.Sprintf("No messages parsed (%d lines skipped)", len(parsed.Skipped))
		result.Suggests = []string{
			"Lines should look like \"25/12/2023, 9:05 p. m. - Author: message\"",
			"Use 'chaturgency detect " + file + "' to check the date order",
		}
	case parsed.SkippedByReason()[parser.SkipBadTimestamp] > 0:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("%d/%d lines parsed, some timestamps rejected", len(parsed.Messages), total)
		result.Suggests = []string{"The date order may be wrong for this export"}
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("%d/%d lines parsed", len(parsed.Messages), total)
	}

	result.Details = skipDetails(parsed, opts.Verbose)
	return append(results, result)
}

func dateOrderResult(name string, cfg *config.Config, det *detector.DetectionResult) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Date Order: %s", name),
	}

	if len(det.MissingColumns) > 0 {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Missing required columns: %s", strings.Join(det.MissingColumns, ", "))
		result.Suggests = []string{"Tabular exports need message, date, time and author columns"}
		return result
	}
	if !det.HasMatch() {
		result.Status = StatusWarning
		result.Message = "No line follows the chat export format"
		return result
	}

	detected := det.DateOrder()
	configured := cfg.Format.DateOrder
	result.Details = []string{
		fmt.Sprintf("Sample: %s", truncate(det.BestMatch().SampleLine, 80)),
	}

	switch {
	case det.Ambiguous():
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Ambiguous, no day above 12 in %d sampled lines", det.SampledLines)
	case cfg.AutoDateOrder() || configured == string(detected):
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Detected %s", detected)
	default:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Detected %s but config says %s", detected, configured)
		result.Suggests = []string{
			fmt.Sprintf("Set format.date_order: %s (or auto)", detected),
		}
	}
	return result
}

func parseExport(ctx context.Context, p *pipeline.Pipeline, file string) (*parser.ParseResult, error) {
	f, err := os.Open(file) // #nosec G304 -- user-provided export paths
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if parser.IsTable(file) {
		return p.ParseTable(ctx, f, file)
	}
	return p.ParseText(ctx, f, file)
}

// skipDetails summarizes skipped lines per reason. Verbose lists each one.
func skipDetails(result *parser.ParseResult, verbose bool) []string {
	counts := result.SkippedByReason()
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	details := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		details = append(details, fmt.Sprintf("Skipped %s: %d", reason, counts[parser.SkipReason(reason)]))
	}

	if verbose {
		for _, s := range result.Skipped {
			details = append(details, fmt.Sprintf("line %d (%s): %s", s.LineNum, s.Reason, truncate(s.Raw, 60)))
		}
	}
	return details
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== chaturgency Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
			okCount++
		case StatusWarning:
			icon = "WARN"
			warnCount++
		case StatusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	case warnCount > 0:
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", webhookName(wh)),
		}

		// Load expands ${VAR}; a leftover $ means the variable was unset.
		if strings.HasPrefix(wh.Token, "$") {
			result.Status = StatusWarning
			result.Message = "1 warning(s)"
			result.Details = []string{fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token)}
		} else {
			result.Status = StatusOK
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
		}

		if opts.Verbose && result.Status == StatusOK {
			result.Details = []string{
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			}
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", webhookName(wh))
			results = append(results, result)
		}
	}

	return results
}

func webhookName(wh config.WebhookConfig) string {
	if wh.Name != "" {
		return wh.Name
	}
	return wh.URL
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may only accept POST (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
