package analyzer

import (
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
)

// Aggregator folds scored messages into one part of an AnalysisResult.
// Each report table (phrase frequencies, histogram) implements this
// interface.
type Aggregator interface {
	// Name identifies the aggregator in errors and logs.
	Name() string

	// Add records one scored message. words is the normalized message text
	// split on whitespace.
	Add(msg *parser.ChatMessage, words []string, a scorer.Assessment)

	// Finalize writes the aggregate into result.
	// Called after every message has been added.
	Finalize(result *AnalysisResult)

	// Reset clears internal state for reuse.
	Reset()
}
