// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/ccollicutt/chaturgency/pkg/analyzer"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Report is the complete analysis output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Rows holds one entry per scored message.
	Rows []Row `json:"rows"`

	// TopBigrams and TopTrigrams are the phrase frequency tables.
	TopBigrams  []textproc.PhraseCount `json:"top_bigrams"`
	TopTrigrams []textproc.PhraseCount `json:"top_trigrams"`

	// Histogram maps each score to the number of messages that received it.
	Histogram []analyzer.HistogramBin `json:"histogram"`

	// Skipped lists the input lines that produced no message.
	Skipped []parser.SkippedLine `json:"skipped,omitempty"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`
}

// Row is one message as presented to readers.
type Row struct {
	Timestamp     time.Time             `json:"timestamp"`
	Author        string                `json:"author"`
	Message       string                `json:"message"`
	Score         int                   `json:"score"`
	Label         string                `json:"label"`
	Confidence    float64               `json:"confidence"`
	Urgent        bool                  `json:"urgent"`
	Degraded      bool                  `json:"degraded,omitempty"`
	PresetUrgency *int                  `json:"preset_urgency,omitempty"`
	Group         string                `json:"group,omitempty"`
	Source        string                `json:"source,omitempty"`
	LineNum       int                   `json:"line_num,omitempty"`
	Contributions []scorer.Contribution `json:"contributions,omitempty"`
	Errors        []string              `json:"errors,omitempty"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// Messages is the number of scored messages.
	Messages int `json:"messages"`

	// Urgent is the number of messages at or above UrgentThreshold.
	Urgent int `json:"urgent"`

	// UrgentThreshold is the score at which a message counts as urgent.
	UrgentThreshold int `json:"urgent_threshold"`

	// MaxScore is the highest score in the report.
	MaxScore int `json:"max_score"`

	// Degraded is the number of messages whose classification failed.
	Degraded int `json:"degraded"`

	// Skipped is the number of input lines that produced no message.
	Skipped int `json:"skipped"`

	// MessagesRead counts messages before filtering.
	MessagesRead int `json:"messages_read"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the chat exports that were analyzed.
	Sources []string `json:"sources,omitempty"`

	// TimeRange is the time filter that was applied, if any.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// Authors is the author filter that was applied, if any.
	Authors []string `json:"authors,omitempty"`

	// Classifier names the sentiment backend.
	Classifier string `json:"classifier"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`
}

// TimeRange represents a time window for filtering.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewReport creates a Report from analysis results.
func NewReport(result *analyzer.AnalysisResult, configFile string) *Report {
	threshold := result.Metadata.UrgentThreshold

	report := &Report{
		TopBigrams:  result.TopBigrams,
		TopTrigrams: result.TopTrigrams,
		Histogram:   result.Histogram,
		Skipped:     result.Skipped,
		Metadata: Metadata{
			RunID:      result.Metadata.RunID,
			ConfigFile: configFile,
			Sources:    result.Metadata.Sources,
			Authors:    result.Metadata.Authors,
			Classifier: result.Metadata.Classifier,
			AnalyzedAt: result.Metadata.EndTime,
			Duration:   result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			Messages:        len(result.Rows),
			Urgent:          result.UrgentCount(),
			UrgentThreshold: threshold,
			MaxScore:        result.MaxScore(),
			Degraded:        result.DegradedCount(),
			Skipped:         len(result.Skipped),
			MessagesRead:    result.Metadata.MessagesRead,
		},
	}

	report.Rows = make([]Row, 0, len(result.Rows))
	for _, r := range result.Rows {
		msg, a := r.Message, r.Assessment
		report.Rows = append(report.Rows, Row{
			Timestamp:     msg.Timestamp,
			Author:        msg.Author,
			Message:       msg.RawText,
			Score:         a.Score,
			Label:         a.Label.String(),
			Confidence:    a.Confidence,
			Urgent:        a.Urgent(threshold),
			Degraded:      a.Degraded,
			PresetUrgency: msg.PresetUrgency,
			Group:         msg.Group,
			Source:        msg.Source,
			LineNum:       msg.LineNum,
			Contributions: a.Contributions,
			Errors:        a.Errors,
		})
	}

	if result.Metadata.TimeRange != nil {
		report.Metadata.TimeRange = &TimeRange{
			Start: result.Metadata.TimeRange.Start,
			End:   result.Metadata.TimeRange.End,
		}
	}

	return report
}

// HasUrgent returns true if any message reached the urgent threshold.
func (r *Report) HasUrgent() bool {
	return r.Summary.Urgent > 0
}

// Empty reports the "nothing to show" condition.
func (r *Report) Empty() bool {
	return len(r.Rows) == 0
}

// UrgentRows returns the rows at or above the urgent threshold.
func (r *Report) UrgentRows() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Urgent {
			out = append(out, row)
		}
	}
	return out
}
