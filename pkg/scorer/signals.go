package scorer

import (
	"strings"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Signal is a heuristic that inspects a message without calling the
// classifier. Implementations must be safe for concurrent use.
type Signal interface {
	// Name identifies the signal in contributions.
	Name() string

	// Evaluate returns the points the message earns, and an optional
	// detail explaining them.
	Evaluate(msg *parser.ChatMessage) (int, string)
}

// AuthorSignal grants points when the author is a priority contact or the
// author name contains an affectionate emoji. The two conditions do not
// stack.
type AuthorSignal struct {
	Authors []string
	Emojis  []string
	Points  int
}

func (s *AuthorSignal) Name() string { return SignalAuthor }

func (s *AuthorSignal) Evaluate(msg *parser.ChatMessage) (int, string) {
	author := strings.TrimSpace(msg.Author)
	for _, a := range s.Authors {
		if strings.EqualFold(author, a) {
			return s.Points, "priority author"
		}
	}
	if textproc.ContainsGlyph(author, s.Emojis) {
		return s.Points, "affectionate emoji in author"
	}
	return 0, ""
}

// TimeSignal grants points when the time of day is at or after LateStart,
// or at or before EarlyEnd. Both are offsets from midnight.
type TimeSignal struct {
	LateStart time.Duration
	EarlyEnd  time.Duration
	Points    int
}

func (s *TimeSignal) Name() string { return SignalTime }

func (s *TimeSignal) Evaluate(msg *parser.ChatMessage) (int, string) {
	t := msg.Timestamp
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if sinceMidnight >= s.LateStart || sinceMidnight <= s.EarlyEnd {
		return s.Points, t.Format("15:04")
	}
	return 0, ""
}

// PhraseSignal grants points when the normalized text contains any of the
// phrases.
type PhraseSignal struct {
	SignalName string
	Phrases    []string
	Points     int

	normalized []string
}

// NewPhraseSignal normalizes phrases once so matching is consistent with
// message normalization.
func NewPhraseSignal(name string, phrases []string, points int) *PhraseSignal {
	s := &PhraseSignal{SignalName: name, Phrases: phrases, Points: points}
	for _, p := range phrases {
		if n := textproc.Normalize(p); n != "" {
			s.normalized = append(s.normalized, n)
		}
	}
	return s
}

func (s *PhraseSignal) Name() string { return s.SignalName }

func (s *PhraseSignal) Evaluate(msg *parser.ChatMessage) (int, string) {
	text := msg.NormalizedText
	if text == "" {
		text = textproc.Normalize(msg.RawText)
	}
	for _, p := range s.normalized {
		if strings.Contains(text, p) {
			return s.Points, p
		}
	}
	return 0, ""
}

// EmojiSignal grants points when the raw text contains an emoji.
type EmojiSignal struct {
	Points int
}

func (s *EmojiSignal) Name() string { return SignalEmoji }

func (s *EmojiSignal) Evaluate(msg *parser.ChatMessage) (int, string) {
	if textproc.ContainsEmoji(msg.RawText) {
		return s.Points, ""
	}
	return 0, ""
}
