package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

const (
	// maxMessageWidth truncates message text in the row table.
	maxMessageWidth = 60

	// histogramWidth is the length of the longest histogram bar.
	histogramWidth = 40
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "chaturgency: %s, %s urgent, max score %d\n",
		english.Plural(report.Summary.Messages, "message", "messages"),
		humanize.Comma(int64(report.Summary.Urgent)),
		report.Summary.MaxScore)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== Chat Urgency Report ===")
	fmt.Fprintln(w)

	if report.Empty() {
		fmt.Fprintln(w, "No messages to show")
		fmt.Fprintln(w)
	} else {
		if err := f.formatRows(report, w); err != nil {
			return err
		}
		f.formatPhrases("Top bigrams", report.TopBigrams, w)
		f.formatPhrases("Top trigrams", report.TopTrigrams, w)
		f.formatHistogram(report, w)
	}

	if f.opts.Verbose && len(report.Skipped) > 0 {
		f.formatSkipped(report, w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %s, %s urgent (score >= %d), %s degraded, %s\n",
		english.Plural(report.Summary.Messages, "message", "messages"),
		humanize.Comma(int64(report.Summary.Urgent)),
		report.Summary.UrgentThreshold,
		humanize.Comma(int64(report.Summary.Degraded)),
		english.Plural(report.Summary.Skipped, "skipped line", "skipped lines"))

	if f.opts.Verbose {
		fmt.Fprintf(w, "Run: %s\n", report.Metadata.RunID)
		fmt.Fprintf(w, "Classifier: %s\n", report.Metadata.Classifier)
		if len(report.Metadata.Sources) > 0 {
			fmt.Fprintf(w, "Sources: %s\n", strings.Join(report.Metadata.Sources, ", "))
		}
		fmt.Fprintf(w, "Messages read: %s\n", humanize.Comma(int64(report.Summary.MessagesRead)))
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatRows(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "Messages (%s)\n", humanize.Comma(int64(len(report.Rows))))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tAUTHOR\tSCORE\tSENTIMENT\tMESSAGE")
	for _, row := range report.Rows {
		marker := " "
		if row.Urgent {
			marker = "!"
		}
		sentiment := fmt.Sprintf("%s (%.2f)", row.Label, row.Confidence)
		if row.Degraded {
			sentiment += " [degraded]"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%d\t%s\t%s\n",
			marker,
			row.Timestamp.Format("2006-01-02 15:04"),
			row.Author,
			row.Score,
			sentiment,
			truncate(row.Message, maxMessageWidth))

		if f.opts.Verbose {
			for _, c := range row.Contributions {
				if c.Points == 0 {
					continue
				}
				detail := ""
				if c.Detail != "" {
					detail = " (" + c.Detail + ")"
				}
				fmt.Fprintf(tw, "    %s +%d%s\t\t\t\t\n", c.Signal, c.Points, detail)
			}
			for _, e := range row.Errors {
				fmt.Fprintf(tw, "    error: %s\t\t\t\t\n", e)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (f *TextFormatter) formatPhrases(title string, phrases []textproc.PhraseCount, w io.Writer) {
	fmt.Fprintln(w, title)
	if len(phrases) == 0 {
		fmt.Fprintln(w, "  (none)")
		fmt.Fprintln(w)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range phrases {
		fmt.Fprintf(tw, "  %s\t%s\n", p.Phrase, humanize.Comma(int64(p.Count)))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatHistogram(report *Report, w io.Writer) {
	fmt.Fprintln(w, "Score histogram")

	peak := 0
	for _, bin := range report.Histogram {
		peak = max(peak, bin.Count)
	}
	for _, bin := range report.Histogram {
		fmt.Fprintf(w, "  %d | %s %s\n", bin.Score, bar(bin.Count, peak), humanize.Comma(int64(bin.Count)))
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatSkipped(report *Report, w io.Writer) {
	fmt.Fprintf(w, "Skipped lines (%s)\n", humanize.Comma(int64(len(report.Skipped))))
	for _, s := range report.Skipped {
		loc := fmt.Sprintf("line %d", s.LineNum)
		if s.Source != "" {
			loc = fmt.Sprintf("%s:%d", s.Source, s.LineNum)
		}
		fmt.Fprintf(w, "  - %s [%s] %s\n", loc, s.Reason, truncate(s.Raw, maxMessageWidth))
		if s.Detail != "" {
			fmt.Fprintf(w, "    %s\n", s.Detail)
		}
	}
	fmt.Fprintln(w)
}

// bar scales count against peak. Non-zero counts always get at least one
// mark.
func bar(count, peak int) string {
	if count == 0 || peak == 0 {
		return ""
	}
	n := max(count*histogramWidth/peak, 1)
	return strings.Repeat("#", n)
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}
