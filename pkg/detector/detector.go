// Package detector infers the date order of chat exports.
//
// A line such as "3/4/2024, 9:05 p. m. - Ana: hola" can be read as 3 April
// or 4 March. The detector samples lines, parses each one under every known
// format, and ranks the formats by how many lines they parse: any line with
// a day above 12 rules out one of the two orders.
package detector

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
)

// Export kinds.
const (
	KindText  = "text"
	KindTable = "table"
)

// DetectionResult holds the result of analyzing an export.
type DetectionResult struct {
	Kind           string        // KindText or KindTable
	Matches        []FormatMatch // Formats that matched, sorted by confidence descending
	SampledLines   int           // Number of lines (or rows) sampled
	ParsedLines    int           // Number of lines parsed by the best match
	AmbiguityNote  string        // Warning when no sampled line settles the date order
	MissingColumns []string      // Required columns absent from a tabular export
}

// FormatMatch represents a format that matched with its confidence score.
type FormatMatch struct {
	Format     *ExportFormat
	Confidence float64   // 0.0 to 1.0 (fraction of sampled lines parsed)
	MatchCount int       // Number of lines that parsed
	SampleLine string    // Example line that parsed
	ParsedTime time.Time // Parsed timestamp from sample
}

// Detector analyzes chat exports to identify their date order.
type Detector struct {
	formats    []*ExportFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 200).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: 200,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile analyzes an export file. CSV files are read as tables.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if parser.IsTable(path) {
		return d.DetectFromTable(ctx, file)
	}

	lines, err := d.sampleLines(ctx, file)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines analyzes a slice of text export lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	var sample []string
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if line != "" {
			sample = append(sample, line)
		}
	}

	return d.rank(KindText, sample, func(f *ExportFormat, line string) (time.Time, bool) {
		return f.parseLine(line)
	})
}

// DetectFromTable analyzes the date column of a CSV export.
func (d *Detector) DetectFromTable(ctx context.Context, r io.Reader) (*DetectionResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &DetectionResult{Kind: KindTable, MissingColumns: parser.RequiredColumns}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range parser.RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &DetectionResult{Kind: KindTable, MissingColumns: missing}, nil
	}

	dateCol := columns[parser.ColumnDate]
	var dates []string
	for len(dates) < d.sampleSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if dateCol < len(record) {
			if date := strings.TrimSpace(record[dateCol]); date != "" {
				dates = append(dates, date)
			}
		}
	}

	return d.rank(KindTable, dates, func(f *ExportFormat, date string) (time.Time, bool) {
		return f.parseDate(date)
	}), nil
}

// rank parses every sample under every format and orders the formats by
// how many samples they parsed.
func (d *Detector) rank(kind string, samples []string, parse func(*ExportFormat, string) (time.Time, bool)) *DetectionResult {
	result := &DetectionResult{
		Kind:         kind,
		SampledLines: len(samples),
	}

	if len(samples) == 0 {
		return result
	}

	for _, format := range d.formats {
		match := FormatMatch{Format: format}
		for _, s := range samples {
			ts, ok := parse(format, s)
			if !ok {
				continue
			}
			if match.MatchCount == 0 {
				match.SampleLine = s
				match.ParsedTime = ts
			}
			match.MatchCount++
		}
		if match.MatchCount == 0 {
			continue
		}
		match.Confidence = float64(match.MatchCount) / float64(len(samples))
		result.Matches = append(result.Matches, match)
	}

	// Ties keep format order, so day-first wins when nothing disambiguates.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].MatchCount > result.Matches[j].MatchCount
	})

	if len(result.Matches) > 0 {
		result.ParsedLines = result.Matches[0].MatchCount
	}

	if len(result.Matches) > 1 && result.Matches[0].MatchCount == result.Matches[1].MatchCount {
		result.AmbiguityNote = "No sampled line has a day above 12, so day-first and month-first " +
			"read the export equally well. Assuming " + string(result.Matches[0].Format.DateOrder) +
			"; set format.date_order in the config if dates look wrong."
	}

	return result
}

// sampleLines reads up to sampleSize non-blank lines.
// Uses simple head sampling for efficiency.
func (d *Detector) sampleLines(ctx context.Context, r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for len(lines) < d.sampleSize && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(scanner.Text()) != "" {
			lines = append(lines, scanner.Text())
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Ambiguous reports whether the date order could not be settled.
func (r *DetectionResult) Ambiguous() bool {
	return r.AmbiguityNote != ""
}

// DateOrder returns the detected date order, or day-first when nothing
// matched.
func (r *DetectionResult) DateOrder() parser.DateOrder {
	if best := r.BestMatch(); best != nil {
		return best.Format.DateOrder
	}
	return parser.DayFirst
}
