package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Column names of tabular exports.
const (
	ColumnMessage = "message"
	ColumnDate    = "date"
	ColumnTime    = "time"
	ColumnAuthor  = "author"
	ColumnUrgency = "urgency"
	ColumnGroup   = "group"
)

// RequiredColumns lists the columns a tabular export must have.
var RequiredColumns = []string{ColumnMessage, ColumnDate, ColumnTime, ColumnAuthor}

// MissingColumnsError reports required columns absent from a tabular export.
type MissingColumnsError struct {
	Source  string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s",
		displaySource(e.Source), strings.Join(e.Missing, ", "))
}

var clock12Pattern = regexp.MustCompile(
	`^(\d{1,2}:\d{2}(?::\d{2})?)[ \x{00A0}\x{202F}]?([aApP]\.?[ \x{00A0}\x{202F}]?[mM]\.?)$`)

// ReadTable parses a CSV export with the default parser settings.
func ReadTable(r io.Reader, source string) (*ParseResult, error) {
	return New().ParseTable(context.Background(), r, source)
}

// ParseTable reads a CSV export with a header row. The message, date, time
// and author columns are required; urgency and group are optional. A
// missing required column returns *MissingColumnsError and nothing else is
// read. Rows with unparsable date/time are skipped with a diagnostic.
func (p *Parser) ParseTable(ctx context.Context, r io.Reader, source string) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MissingColumnsError{Source: source, Missing: RequiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", displaySource(source), err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Source: source, Missing: missing}
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &ParseResult{}
	row := 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return result, fmt.Errorf("reading %s row %d: %w", displaySource(source), row, err)
		}

		raw := strings.Join(record, ",")
		text := field(record, ColumnMessage)

		if p.isSystemNotice(text) {
			result.Skipped = append(result.Skipped, *p.skip(raw, source, row, SkipSystemNotice, ""))
			continue
		}

		ts, err := parseTableTimestamp(field(record, ColumnDate), field(record, ColumnTime), p.order)
		if err != nil {
			result.Skipped = append(result.Skipped, *p.skip(raw, source, row, SkipBadTimestamp, err.Error()))
			continue
		}

		msg := &ChatMessage{
			Timestamp:      ts,
			Author:         field(record, ColumnAuthor),
			RawText:        text,
			NormalizedText: textproc.Normalize(text),
			Source:         source,
			LineNum:        row,
			Group:          field(record, ColumnGroup),
		}
		if v := field(record, ColumnUrgency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				msg.PresetUrgency = &n
			}
		}
		result.Messages = append(result.Messages, msg)
	}

	return result, nil
}

func (p *Parser) isSystemNotice(text string) bool {
	for _, notice := range p.notices {
		if notice != "" && strings.Contains(text, notice) {
			return true
		}
	}
	return false
}

// parseTableTimestamp accepts D/D/YYYY or YYYY-MM-DD dates and 12-hour
// (with am/pm marker) or 24-hour clocks, with or without seconds.
func parseTableTimestamp(date, clock string, order DateOrder) (time.Time, error) {
	clockLayouts := []string{"15:04", "15:04:05"}
	if m := clock12Pattern.FindStringSubmatch(clock); m != nil {
		clock = m[1] + " " + NormalizeMarker(m[2])
		clockLayouts = []string{"3:04 PM", "3:04:05 PM"}
	}

	dateLayout := order.DateLayout()

	value := date + " " + clock
	for _, dl := range []string{dateLayout, "2006-01-02"} {
		for _, cl := range clockLayouts {
			if ts, err := time.Parse(dl+" "+cl, value); err == nil {
				return ts, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unrecognized date/time format", value)
}
