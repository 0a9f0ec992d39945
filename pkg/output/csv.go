package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVFormatter writes one CSV record per message row. Phrase tables and the
// histogram are not part of the CSV form.
type CSVFormatter struct {
	opts FormatOptions
}

// NewCSVFormatter creates a new CSV formatter with the given options.
func NewCSVFormatter(opts FormatOptions) *CSVFormatter {
	return &CSVFormatter{opts: opts}
}

// Name returns the format name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

var csvHeader = []string{
	"timestamp", "author", "message", "score", "label", "confidence",
	"urgent", "degraded", "source", "line",
}

// Format renders the report rows as CSV. Verbose mode appends a
// contributions column.
func (f *CSVFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := csvHeader
	if f.opts.Verbose {
		header = append(append([]string{}, csvHeader...), "contributions")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range report.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := []string{
			row.Timestamp.Format(time.RFC3339),
			row.Author,
			row.Message,
			strconv.Itoa(row.Score),
			row.Label,
			strconv.FormatFloat(row.Confidence, 'f', 2, 64),
			strconv.FormatBool(row.Urgent),
			strconv.FormatBool(row.Degraded),
			row.Source,
			strconv.Itoa(row.LineNum),
		}
		if f.opts.Verbose {
			record = append(record, contributionList(row))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// contributionList renders non-zero contributions as "author=2;time=1".
func contributionList(row Row) string {
	var parts []string
	for _, c := range row.Contributions {
		if c.Points != 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c.Signal, c.Points))
		}
	}
	return strings.Join(parts, ";")
}
