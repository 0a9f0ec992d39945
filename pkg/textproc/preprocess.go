package textproc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/bbalet/stopwords"
)

// StopwordLanguages are the ISO 639-1 codes whose stopword lists the
// default Preprocessor removes.
var StopwordLanguages = []string{"es", "en"}

// Lemmatizer maps a word to its dictionary form. Unknown words come back
// unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

var (
	defaultLemmatizer     *golem.Lemmatizer
	defaultLemmatizerErr  error
	defaultLemmatizerOnce sync.Once
)

// DefaultLemmatizer returns the shared dictionary lemmatizer. The English
// dictionary is loaded on first use.
func DefaultLemmatizer() (Lemmatizer, error) {
	defaultLemmatizerOnce.Do(func() {
		defaultLemmatizer, defaultLemmatizerErr = golem.New(en.New())
		if defaultLemmatizerErr != nil {
			defaultLemmatizerErr = fmt.Errorf("loading lemma dictionary: %w", defaultLemmatizerErr)
		}
	})
	if defaultLemmatizerErr != nil {
		return nil, defaultLemmatizerErr
	}
	return defaultLemmatizer, nil
}

// Lemma returns the dictionary form of word, or word itself when the
// dictionary does not know it.
func Lemma(word string) string {
	l, err := DefaultLemmatizer()
	if err != nil {
		return word
	}
	return l.Lemma(word)
}

// IsStopword reports whether word is on the stopword list of any of the
// given languages.
func IsStopword(word string, langs ...string) bool {
	for _, lang := range langs {
		if strings.TrimSpace(stopwords.CleanString(word, lang, false)) == "" {
			return true
		}
	}
	return false
}

// Preprocessor turns a message into the token sequence fed to the sentiment
// classifier: normalized, stopwords removed, inflections reduced.
type Preprocessor struct {
	custom     map[string]bool
	langs      []string
	lemmatizer Lemmatizer
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithStopwords replaces the built-in stopword lists with words.
func WithStopwords(words []string) PreprocessorOption {
	return func(p *Preprocessor) {
		p.langs = nil
		p.custom = make(map[string]bool, len(words))
		for _, w := range words {
			p.custom[Normalize(w)] = true
		}
	}
}

// WithLemmatization toggles inflection reduction (default on).
func WithLemmatization(on bool) PreprocessorOption {
	return func(p *Preprocessor) {
		if !on {
			p.lemmatizer = nil
			return
		}
		if p.lemmatizer == nil {
			if l, err := DefaultLemmatizer(); err == nil {
				p.lemmatizer = l
			}
		}
	}
}

// WithLemmatizer sets the lemmatizer used for inflection reduction.
func WithLemmatizer(l Lemmatizer) PreprocessorOption {
	return func(p *Preprocessor) {
		p.lemmatizer = l
	}
}

// NewPreprocessor creates a Preprocessor that removes Spanish and English
// stopwords and lemmatizes with the default dictionary.
func NewPreprocessor(opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{langs: StopwordLanguages}
	WithLemmatization(true)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tokens returns the preprocessed tokens of text.
func (p *Preprocessor) Tokens(text string) []string {
	fields := strings.Fields(Normalize(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if p.isStopword(f) {
			continue
		}
		if p.lemmatizer != nil {
			f = p.lemmatizer.Lemma(f)
		}
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Text returns the preprocessed tokens joined by single spaces.
func (p *Preprocessor) Text(text string) string {
	return strings.Join(p.Tokens(text), " ")
}

func (p *Preprocessor) isStopword(word string) bool {
	if p.custom != nil {
		return p.custom[word]
	}
	return IsStopword(word, p.langs...)
}
