// Package analyzer runs the chat urgency pipeline: it drains a message
// source, scores every message and builds the report tables.
package analyzer

import (
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Row is one scored message.
type Row struct {
	Message    *parser.ChatMessage `json:"message"`
	Assessment scorer.Assessment   `json:"assessment"`
}

// Urgent reports whether the row reaches threshold.
func (r Row) Urgent(threshold int) bool {
	return r.Assessment.Urgent(threshold)
}

// HistogramBin counts the messages that received one score.
type HistogramBin struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// TimeRange defines a time window for filtering messages. Both ends are
// inclusive.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the range.
func (r *TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// AnalysisResult contains the complete analysis output.
type AnalysisResult struct {
	// Rows holds one entry per scored message, in source order.
	Rows []Row

	// TopBigrams and TopTrigrams are the most frequent two- and three-token
	// spans across all scored messages.
	TopBigrams  []textproc.PhraseCount
	TopTrigrams []textproc.PhraseCount

	// Histogram has one bin per possible score, zero counts included.
	Histogram []HistogramBin

	// Skipped lists the input lines that produced no message.
	Skipped []parser.SkippedLine

	// Metadata provides context about the analysis.
	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// RunID uniquely identifies this run in logs and webhook payloads.
	RunID string

	// Sources lists the chat exports that produced messages.
	Sources []string

	// TimeRange is the time filter applied, if any.
	TimeRange *TimeRange

	// Authors is the author filter applied, if any.
	Authors []string

	// Classifier names the sentiment backend.
	Classifier string

	// UrgentThreshold is the score at which a message counts as urgent.
	UrgentThreshold int

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time

	// MessagesRead is the number of messages the source produced,
	// before filtering.
	MessagesRead int
}

// Empty reports the "nothing to show" condition.
func (r *AnalysisResult) Empty() bool {
	return len(r.Rows) == 0
}

// UrgentCount returns the number of rows at or above the urgent threshold.
func (r *AnalysisResult) UrgentCount() int {
	count := 0
	for _, row := range r.Rows {
		if row.Urgent(r.Metadata.UrgentThreshold) {
			count++
		}
	}
	return count
}

// HasUrgent returns true if any row reaches the urgent threshold.
func (r *AnalysisResult) HasUrgent() bool {
	return r.UrgentCount() > 0
}

// DegradedCount returns the number of rows whose classification failed at
// least partly.
func (r *AnalysisResult) DegradedCount() int {
	count := 0
	for _, row := range r.Rows {
		if row.Assessment.Degraded {
			count++
		}
	}
	return count
}

// MaxScore returns the highest score among the rows.
func (r *AnalysisResult) MaxScore() int {
	max := 0
	for _, row := range r.Rows {
		if row.Assessment.Score > max {
			max = row.Assessment.Score
		}
	}
	return max
}
