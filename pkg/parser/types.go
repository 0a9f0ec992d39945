// Package parser turns exported chat logs into structured chat messages.
package parser

import "time"

// ChatMessage is one successfully parsed chat line.
type ChatMessage struct {
	// Timestamp is the message date and time (minute resolution for text
	// exports). Exports carry no zone, so the wall clock is stored as UTC.
	Timestamp time.Time `json:"timestamp"`

	// Author is the sender as written in the export.
	Author string `json:"author"`

	// RawText is the message body exactly as exported.
	RawText string `json:"raw_text"`

	// NormalizedText is RawText lowercased with URLs, digits and punctuation
	// removed.
	NormalizedText string `json:"normalized_text"`

	// Source is the file or input name this message came from.
	Source string `json:"source,omitempty"`

	// LineNum is the 1-based line (or CSV row) number in the source.
	LineNum int `json:"line_num,omitempty"`

	// Group is the optional group column of tabular exports.
	Group string `json:"group,omitempty"`

	// PresetUrgency is a pre-computed urgency from tabular exports, if any.
	PresetUrgency *int `json:"preset_urgency,omitempty"`
}

// SkipReason explains why an input line produced no message.
type SkipReason string

const (
	// SkipSystemNotice marks lines containing a system notice substring.
	SkipSystemNotice SkipReason = "system_notice"

	// SkipNoMatch marks lines that do not follow the line grammar
	// (headers, multi-line continuations, malformed lines).
	SkipNoMatch SkipReason = "no_match"

	// SkipBadTimestamp marks lines whose date or time failed to parse.
	SkipBadTimestamp SkipReason = "bad_timestamp"
)

// SkippedLine is a diagnostic for an input line that was dropped.
type SkippedLine struct {
	Source  string     `json:"source,omitempty"`
	LineNum int        `json:"line_num"`
	Raw     string     `json:"raw"`
	Reason  SkipReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// ParseResult holds the messages parsed from an input and the lines that
// were dropped along the way.
type ParseResult struct {
	Messages []*ChatMessage
	Skipped  []SkippedLine
}

// Empty reports whether no message was parsed. This is the "nothing to show"
// condition, not an error.
func (r *ParseResult) Empty() bool {
	return r == nil || len(r.Messages) == 0
}

// SkippedByReason counts skipped lines per reason.
func (r *ParseResult) SkippedByReason() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	return counts
}
