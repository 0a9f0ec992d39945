package detector

import (
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
)

// ExportFormat represents a known chat export date convention.
type ExportFormat struct {
	Name      string           // Human-readable name
	DateOrder parser.DateOrder // Value for format.date_order in config
	Examples  []string         // Example export lines
}

// parseLine parses the timestamp of a text export line in this format.
func (f *ExportFormat) parseLine(line string) (time.Time, bool) {
	date, clock, marker, ok := parser.MatchLine(line)
	if !ok {
		return time.Time{}, false
	}
	ts, err := parser.ParseTimestamp(date, clock, marker, f.DateOrder)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// parseDate parses the date column of a tabular export in this format.
func (f *ExportFormat) parseDate(date string) (time.Time, bool) {
	for _, layout := range []string{f.DateOrder.DateLayout(), "2006-01-02"} {
		if ts, err := time.Parse(layout, date); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DefaultFormats returns the built-in export formats to detect.
// Day-first comes first so it wins when no line disambiguates.
func DefaultFormats() []*ExportFormat {
	return []*ExportFormat{
		{
			Name:      "Chat export (day-first)",
			DateOrder: parser.DayFirst,
			Examples:  []string{"25/12/2023, 9:05 p. m. - Mamá: ¿ya llegaste?"},
		},
		{
			Name:      "Chat export (month-first)",
			DateOrder: parser.MonthFirst,
			Examples:  []string{"12/25/2023, 9:05 PM - Mom: are you home?"},
		},
	}
}
