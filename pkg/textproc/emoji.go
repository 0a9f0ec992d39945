package textproc

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
)

// emojiRunes holds every emoji that is a single code point once variation
// selectors are removed. Multi-rune sequences (keycaps, flags, ZWJ
// families) are covered through their pictographic parts.
var emojiRunes = sync.OnceValue(func() map[rune]bool {
	set := make(map[rune]bool)
	for _, e := range gomoji.AllEmojis() {
		c := strings.Trim(e.Character, "\ufe0f\ufe0e")
		if r, size := utf8.DecodeRuneInString(c); size > 0 && size == len(c) && r != utf8.RuneError {
			set[r] = true
		}
	}
	return set
})

// IsEmoji reports whether r is an emoji glyph.
func IsEmoji(r rune) bool {
	return emojiRunes()[r]
}

// ContainsEmoji reports whether s contains at least one emoji glyph.
func ContainsEmoji(s string) bool {
	return strings.IndexFunc(s, IsEmoji) >= 0
}

// ContainsGlyph reports whether s contains any of the given glyphs. Variation
// selectors (U+FE0E, U+FE0F) are ignored on both sides of the match.
func ContainsGlyph(s string, glyphs []string) bool {
	for _, g := range glyphs {
		g = strings.TrimRight(g, "\ufe0f\ufe0e")
		if g != "" && strings.Contains(s, g) {
			return true
		}
	}
	return false
}
