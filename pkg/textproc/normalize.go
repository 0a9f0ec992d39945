// Package textproc provides the text normalization and tokenization shared by
// the chat parser, the urgency scorer and the phrase frequency tables.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+`)
	digitPattern = regexp.MustCompile(`\p{Nd}+`)
)

// Normalize lowercases text and strips URLs, digit sequences and
// punctuation, collapsing the remaining whitespace.
//
// Letters keep their accents: "Llegué!" becomes "llegué".
func Normalize(text string) string {
	// A Caser carries state and must not be shared across goroutines.
	text = cases.Lower(language.Und).String(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = digitPattern.ReplaceAllString(text, "")
	text = strings.Map(keepWordRune, text)
	return strings.Join(strings.Fields(text), " ")
}

// keepWordRune keeps word characters, maps whitespace to a plain space and
// drops everything else (punctuation, symbols, emoji).
func keepWordRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsNumber(r), r == '_':
		return r
	case unicode.IsSpace(r):
		return ' '
	default:
		return -1
	}
}

// ContainsAny reports whether normalized text contains any of the phrases.
// Phrases are normalized the same way before matching, so configuration may
// use any casing.
func ContainsAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		p = Normalize(p)
		if p == "" {
			continue
		}
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
