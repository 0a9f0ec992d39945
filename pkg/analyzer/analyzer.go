package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// DefaultUrgentThreshold is the score at which a message counts as urgent.
const DefaultUrgentThreshold = 4

// Analyzer orchestrates chat analysis: filtering, scoring and aggregation.
type Analyzer struct {
	scorer      *scorer.Scorer
	aggregators []Aggregator

	// Options
	timeRange       *TimeRange
	authorFilter    map[string]bool // nil means all authors
	authors         []string
	topN            int
	urgentThreshold int
	logger          *slog.Logger
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithTimeRange limits analysis to messages within the given time range.
func WithTimeRange(start, end time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.timeRange = &TimeRange{Start: start, End: end}
	}
}

// WithAuthorFilter limits analysis to the given authors. Matching is
// case-insensitive.
func WithAuthorFilter(authors []string) AnalyzerOption {
	return func(a *Analyzer) {
		if len(authors) > 0 {
			a.authors = authors
			a.authorFilter = make(map[string]bool, len(authors))
			for _, name := range authors {
				a.authorFilter[strings.ToLower(strings.TrimSpace(name))] = true
			}
		}
	}
}

// WithTopN sets the length of the phrase frequency tables.
func WithTopN(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithUrgentThreshold sets the score at which a message counts as urgent.
func WithUrgentThreshold(threshold int) AnalyzerOption {
	return func(a *Analyzer) {
		if threshold > 0 {
			a.urgentThreshold = threshold
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer creates a new analyzer around a scorer.
func NewAnalyzer(s *scorer.Scorer, opts ...AnalyzerOption) (*Analyzer, error) {
	if s == nil {
		return nil, errors.New("analyzer requires a scorer")
	}

	a := &Analyzer{
		scorer:          s,
		topN:            DefaultTopN,
		urgentThreshold: DefaultUrgentThreshold,
		logger:          slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		opt(a)
	}

	if a.timeRange != nil && a.timeRange.End.Before(a.timeRange.Start) {
		return nil, fmt.Errorf("time range end %s is before start %s",
			a.timeRange.End.Format(time.RFC3339), a.timeRange.Start.Format(time.RFC3339))
	}

	a.aggregators = []Aggregator{
		newPhraseAggregator(2, a.topN),
		newPhraseAggregator(3, a.topN),
		newHistogramAggregator(s.MaxScore()),
	}
	return a, nil
}

// UrgentThreshold returns the score at which a message counts as urgent.
func (a *Analyzer) UrgentThreshold() int { return a.urgentThreshold }

// Analyze drains source, scores every message that passes the filters and
// returns the aggregated result. An analyzer runs one analysis at a time.
func (a *Analyzer) Analyze(ctx context.Context, source parser.MessageSource) (*AnalysisResult, error) {
	result := &AnalysisResult{
		Metadata: AnalysisMetadata{
			RunID:           uuid.NewString(),
			TimeRange:       a.timeRange,
			Authors:         a.authors,
			Classifier:      a.scorer.ClassifierName(),
			UrgentThreshold: a.urgentThreshold,
			StartTime:       time.Now(),
		},
	}

	// Reset all aggregators before analysis
	for _, agg := range a.aggregators {
		agg.Reset()
	}

	// Track sources seen
	sourcesMap := make(map[string]bool)

	var msgs []*parser.ChatMessage
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msg, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chat source: %w", err)
		}

		result.Metadata.MessagesRead++

		if msg.Source != "" && !sourcesMap[msg.Source] {
			sourcesMap[msg.Source] = true
			result.Metadata.Sources = append(result.Metadata.Sources, msg.Source)
		}

		if !a.keep(msg) {
			continue
		}
		msgs = append(msgs, msg)
	}
	result.Skipped = source.Skipped()

	assessments, err := a.scorer.AssessAll(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("scoring messages: %w", err)
	}

	result.Rows = make([]Row, len(msgs))
	for i, msg := range msgs {
		result.Rows[i] = Row{Message: msg, Assessment: assessments[i]}
		words := phraseWords(msg)
		for _, agg := range a.aggregators {
			agg.Add(msg, words, assessments[i])
		}
	}

	for _, agg := range a.aggregators {
		agg.Finalize(result)
	}

	result.Metadata.EndTime = time.Now()

	a.logger.Debug("analysis complete",
		"run_id", result.Metadata.RunID,
		"messages", len(result.Rows),
		"skipped", len(result.Skipped),
		"urgent", result.UrgentCount(),
		"degraded", result.DegradedCount(),
		"duration", result.Metadata.EndTime.Sub(result.Metadata.StartTime))

	return result, nil
}

// phraseWords splits the normalized text. Stopwords stay in so common
// requests like "por favor" show up in the phrase tables.
func phraseWords(msg *parser.ChatMessage) []string {
	text := msg.NormalizedText
	if text == "" {
		text = textproc.Normalize(msg.RawText)
	}
	return strings.Fields(text)
}

// keep applies the time range and author filters.
func (a *Analyzer) keep(msg *parser.ChatMessage) bool {
	if a.timeRange != nil && !a.timeRange.Contains(msg.Timestamp) {
		return false
	}
	if a.authorFilter != nil && !a.authorFilter[strings.ToLower(strings.TrimSpace(msg.Author))] {
		return false
	}
	return true
}
