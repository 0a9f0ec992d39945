// Package scorer computes the urgency of chat messages from independent
// heuristic signals and sentiment classification.
package scorer

import (
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// Signal names as they appear in contributions.
const (
	SignalAuthor       = "author"
	SignalTime         = "time"
	SignalSentiment    = "sentiment"
	SignalKeyword      = "keyword"
	SignalNegativeWord = "negative_word"
	SignalEmoji        = "emoji"
	SignalNGram        = "ngram"
)

// Contribution is the points one signal added to an assessment.
type Contribution struct {
	Signal string `json:"signal"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Assessment is the urgency verdict for one message. It is computed once
// and never mutated.
type Assessment struct {
	// Score is the urgency level, saturated at the configured maximum.
	Score int `json:"score"`

	// RawScore is the sum of all contributions before saturation.
	RawScore int `json:"raw_score"`

	// Label is the message-level sentiment, downgraded to Neutral when the
	// classifier was not confident enough.
	Label sentiment.Label `json:"label"`

	// RawLabel is the label as the classifier returned it.
	RawLabel sentiment.Label `json:"raw_label"`

	// Confidence is the message-level classifier confidence.
	Confidence float64 `json:"confidence"`

	Contributions []Contribution `json:"contributions,omitempty"`

	// Degraded is set when any classifier call failed; failed calls
	// contribute nothing.
	Degraded bool     `json:"degraded,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Urgent reports whether the score reaches threshold.
func (a Assessment) Urgent(threshold int) bool {
	return a.Score >= threshold
}

// Points returns the points contributed by the named signal.
func (a Assessment) Points(signal string) int {
	total := 0
	for _, c := range a.Contributions {
		if c.Signal == signal {
			total += c.Points
		}
	}
	return total
}
