package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON. Contributions and skipped lines are
// only included in verbose mode.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		// Quiet mode: just summary
		return encoder.Encode(report.Summary)
	}

	if f.opts.Verbose {
		return encoder.Encode(report)
	}

	trimmed := *report
	trimmed.Skipped = nil
	trimmed.Rows = make([]Row, len(report.Rows))
	for i, row := range report.Rows {
		row.Contributions = nil
		trimmed.Rows[i] = row
	}
	return encoder.Encode(&trimmed)
}
