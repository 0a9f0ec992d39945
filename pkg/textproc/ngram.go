package textproc

import (
	"sort"
	"strings"
)

// NGrams returns every adjacent n-token span of tokens, joined by a space.
// Returns nil when there are fewer than n tokens.
func NGrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	spans := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		spans = append(spans, strings.Join(tokens[i:i+n], " "))
	}
	return spans
}

// PhraseCount is a phrase and the number of times it was seen.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// PhraseCounter accumulates phrase frequencies. Not safe for concurrent use.
type PhraseCounter struct {
	counts map[string]int
}

// NewPhraseCounter creates an empty PhraseCounter.
func NewPhraseCounter() *PhraseCounter {
	return &PhraseCounter{counts: make(map[string]int)}
}

// Add counts each phrase once per occurrence.
func (c *PhraseCounter) Add(phrases ...string) {
	for _, p := range phrases {
		c.counts[p]++
	}
}

// Len returns the number of distinct phrases.
func (c *PhraseCounter) Len() int {
	return len(c.counts)
}

// Top returns the n most frequent phrases, ties broken alphabetically.
func (c *PhraseCounter) Top(n int) []PhraseCount {
	all := make([]PhraseCount, 0, len(c.counts))
	for p, count := range c.counts {
		all = append(all, PhraseCount{Phrase: p, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Phrase < all[j].Phrase
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
