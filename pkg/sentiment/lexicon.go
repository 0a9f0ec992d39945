package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Lexicon is an offline, deterministic classifier that sums word
// polarities. It is the default backend and needs no model files.
type Lexicon struct {
	words     map[string]int
	negations map[string]bool
}

// LexiconOption configures a Lexicon.
type LexiconOption func(*Lexicon)

// WithPolarities adds or overrides word polarities. Words are normalized
// before use; a polarity of 0 removes the word.
func WithPolarities(words map[string]int) LexiconOption {
	return func(l *Lexicon) {
		for w, p := range words {
			w = textproc.Normalize(w)
			if w == "" {
				continue
			}
			if p == 0 {
				delete(l.words, w)
				continue
			}
			l.words[w] = p
		}
	}
}

// NewLexicon creates the default Spanish and English lexicon classifier.
func NewLexicon(opts ...LexiconOption) *Lexicon {
	l := &Lexicon{
		words:     make(map[string]int, len(defaultPolarities)),
		negations: map[string]bool{"no": true, "nunca": true, "jamás": true, "not": true, "never": true},
	}
	for w, p := range defaultPolarities {
		l.words[w] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements Classifier.
func (l *Lexicon) Name() string { return "lexicon" }

// Classify implements Classifier. A negation word flips the polarity of the
// word that follows it.
func (l *Lexicon) Classify(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var sum, sumAbs, hits int
	negate := false
	for _, tok := range strings.Fields(textproc.Normalize(text)) {
		if l.negations[tok] {
			negate = true
			continue
		}
		p, ok := l.polarity(tok)
		if !ok {
			negate = false
			continue
		}
		if negate {
			p = -p
			negate = false
		}
		sum += p
		sumAbs += absInt(p)
		hits++
	}

	return Result{Label: labelForSum(sum), Confidence: lexiconConfidence(sum, sumAbs, hits)}, nil
}

// ClassifyBatch implements BatchClassifier.
func (l *Lexicon) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	for i, text := range texts {
		r, err := l.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

func (l *Lexicon) polarity(tok string) (int, bool) {
	if p, ok := l.words[tok]; ok {
		return p, true
	}
	if lemma := textproc.Lemma(tok); lemma != tok {
		if p, ok := l.words[lemma]; ok {
			return p, true
		}
	}
	return 0, false
}

func labelForSum(sum int) Label {
	switch {
	case sum <= -2:
		return VeryNegative
	case sum == -1:
		return Negative
	case sum == 0:
		return Neutral
	case sum == 1:
		return Positive
	default:
		return VeryPositive
	}
}

// lexiconConfidence grows with the number of polar words and shrinks when
// they disagree. Text without polar words is a coin-flip Neutral.
func lexiconConfidence(sum, sumAbs, hits int) float64 {
	if hits == 0 || sumAbs == 0 {
		return 0.5
	}
	agreement := float64(absInt(sum)) / float64(sumAbs)
	strength := math.Min(0.45, 0.05+0.15*float64(hits))
	return math.Round((0.5+strength*agreement)*100) / 100
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var defaultPolarities = map[string]int{
	// Spanish
	"urgente":      -2,
	"emergencia":   -2,
	"hospital":     -2,
	"accidente":    -2,
	"grave":        -2,
	"terrible":     -2,
	"horrible":     -2,
	"auxilio":      -2,
	"socorro":      -2,
	"peligro":      -2,
	"murió":        -2,
	"muerto":       -2,
	"desesperado":  -2,
	"desesperada":  -2,
	"odio":         -2,
	"ayuda":        -1,
	"mal":          -1,
	"malo":         -1,
	"mala":         -1,
	"triste":       -1,
	"preocupado":   -1,
	"preocupada":   -1,
	"problema":     -1,
	"problemas":    -1,
	"enfermo":      -1,
	"enferma":      -1,
	"dolor":        -1,
	"miedo":        -1,
	"llorar":       -1,
	"perdido":      -1,
	"perdida":      -1,
	"enojado":      -1,
	"enojada":      -1,
	"molesto":      -1,
	"cansado":      -1,
	"cansada":      -1,
	"bien":         1,
	"bueno":        1,
	"buena":        1,
	"gracias":      1,
	"feliz":        1,
	"contento":     1,
	"contenta":     1,
	"tranquilo":    1,
	"tranquila":    1,
	"listo":        1,
	"excelente":    2,
	"genial":       2,
	"maravilloso":  2,
	"perfecto":     2,
	"increíble":    2,
	"felicidades":  2,
	"encanta":      2,
	"amo":          2,

	// English
	"urgent":    -2,
	"emergency": -2,
	"accident":  -2,
	"died":      -2,
	"dead":      -2,
	"hate":      -2,
	"danger":    -2,
	"help":      -1,
	"bad":       -1,
	"sad":       -1,
	"worried":   -1,
	"problem":   -1,
	"sick":      -1,
	"pain":      -1,
	"afraid":    -1,
	"angry":     -1,
	"lost":      -1,
	"wrong":     -1,
	"good":      1,
	"fine":      1,
	"thanks":    1,
	"happy":     1,
	"nice":      1,
	"great":     2,
	"excellent": 2,
	"wonderful": 2,
	"amazing":   2,
	"perfect":   2,
	"love":      2,
}
