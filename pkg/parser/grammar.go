package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateOrder selects how the D/D/YYYY date of an export line is read.
type DateOrder string

const (
	// DayFirst reads 1/2/2024 as 1 February 2024.
	DayFirst DateOrder = "day_first"

	// MonthFirst reads 1/2/2024 as 2 January 2024.
	MonthFirst DateOrder = "month_first"
)

// Layout returns the Go time layout for a normalized "date time MARKER"
// string in this order.
func (o DateOrder) Layout() string {
	if o == MonthFirst {
		return "1/2/2006 3:04 PM"
	}
	return "2/1/2006 3:04 PM"
}

// DateLayout returns the Go time layout for the date part alone.
func (o DateOrder) DateLayout() string {
	if o == MonthFirst {
		return "1/2/2006"
	}
	return "2/1/2006"
}

// Valid reports whether o is a known date order.
func (o DateOrder) Valid() bool {
	return o == DayFirst || o == MonthFirst
}

// DefaultSystemNotices are the end-to-end encryption notices chat exports
// write at the top of every conversation.
var DefaultSystemNotices = []string{
	"cifrados de extremo a extremo",
	"end-to-end encrypted",
}

// linePattern matches "D/D/YYYY, H:MM <marker> - AUTHOR: MESSAGE".
// The marker may be preceded by a space, a no-break space or a narrow
// no-break space, and may carry periods ("p.m.", "p. m.").
var linePattern = regexp.MustCompile(
	`^(\d{1,2}/\d{1,2}/\d{4}), (\d{1,2}:\d{2})[ \x{00A0}\x{202F}]?([aApP]\.?[ \x{00A0}\x{202F}]?[mM]\.?) - (.+?): (.*)$`)

// lineFields are the captured parts of a grammar line.
type lineFields struct {
	date, clock, marker, author, text string
}

// matchLine applies the line grammar. ok is false when the line does not
// match.
func matchLine(line string) (lineFields, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return lineFields{}, false
	}
	return lineFields{date: m[1], clock: m[2], marker: m[3], author: m[4], text: m[5]}, true
}

// MatchLine reports whether line follows the export grammar and returns its
// date, clock and am/pm marker fields.
func MatchLine(line string) (date, clock, marker string, ok bool) {
	f, ok := matchLine(line)
	return f.date, f.clock, f.marker, ok
}

// NormalizeMarker strips spaces, no-break spaces and periods from an am/pm
// marker and uppercases it: "p. m." becomes "PM".
func NormalizeMarker(marker string) string {
	marker = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, marker)
	return strings.ToUpper(marker)
}

// ParseTimestamp parses the date, clock and am/pm marker of a line using the
// 12-hour clock.
func ParseTimestamp(date, clock, marker string, order DateOrder) (time.Time, error) {
	value := date + " " + clock + " " + NormalizeMarker(marker)
	ts, err := time.Parse(order.Layout(), value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return ts, nil
}
