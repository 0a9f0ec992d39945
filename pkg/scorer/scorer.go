package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Default signal settings.
var (
	DefaultPriorityAuthors = []string{"Jefe", "Hijo", "Mamá", "Papá", "Esposa", "Novia"}

	DefaultAuthorEmojis = []string{"\u2764\ufe0f", "\U0001F496", "\U0001F498", "\U0001F49D", "\U0001F495"}

	DefaultUrgencyKeywords = []string{
		"urgente", "es urgente", "es para hoy", "necesito ayuda", "por favor",
		"con urgencia", "rapido", "rápido", "callo", "cayó", "caer", "atropellado",
		"urgent", "need help", "please", "right away", "fell", "hit by a vehicle",
	}

	DefaultNegativeWords = []string{
		"malo", "no me gusta", "odio", "peor", "terrible", "desastroso", "fatal",
		"bad", "hate", "worse", "awful", "disaster",
	}

	DefaultNGramSizes = []int{2, 3}
)

const (
	DefaultLateStart           = 20 * time.Hour
	DefaultEarlyEnd            = 5 * time.Hour
	DefaultConfidenceThreshold = 0.6
	DefaultMaxScore            = 5
)

// Scorer assesses chat messages. It holds no per-message state and is safe
// for concurrent use when its classifier is.
type Scorer struct {
	classifier sentiment.Classifier
	pre        *textproc.Preprocessor

	priorityAuthors []string
	authorEmojis    []string
	lateStart       time.Duration
	earlyEnd        time.Duration
	keywords        []string
	negativeWords   []string
	ngramSizes      []int
	threshold       float64
	maxScore        int
	workers         int
	logger          *slog.Logger

	// built by New from the settings above, in contribution order
	before []Signal
	after  []Signal
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithPriorityAuthors replaces the priority contact list.
func WithPriorityAuthors(authors []string) Option {
	return func(s *Scorer) { s.priorityAuthors = authors }
}

// WithAuthorEmojis replaces the affectionate emoji list checked in author
// names.
func WithAuthorEmojis(emojis []string) Option {
	return func(s *Scorer) { s.authorEmojis = emojis }
}

// WithWindow sets the late-night window: times at or after lateStart or at
// or before earlyEnd count. Both are offsets from midnight.
func WithWindow(lateStart, earlyEnd time.Duration) Option {
	return func(s *Scorer) {
		s.lateStart = lateStart
		s.earlyEnd = earlyEnd
	}
}

// WithUrgencyKeywords replaces the urgency phrase list.
func WithUrgencyKeywords(phrases []string) Option {
	return func(s *Scorer) { s.keywords = phrases }
}

// WithNegativeWords replaces the negative word list.
func WithNegativeWords(words []string) Option {
	return func(s *Scorer) { s.negativeWords = words }
}

// WithNGramSizes sets the span lengths rescored by the classifier. An
// empty list disables n-gram rescoring.
func WithNGramSizes(sizes []int) Option {
	return func(s *Scorer) { s.ngramSizes = sizes }
}

// WithConfidenceThreshold sets the confidence below which the label is
// reported as Neutral.
func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Scorer) { s.threshold = threshold }
}

// WithMaxScore sets the saturation ceiling.
func WithMaxScore(max int) Option {
	return func(s *Scorer) {
		if max > 0 {
			s.maxScore = max
		}
	}
}

// WithPreprocessor sets the preprocessing applied before classification.
func WithPreprocessor(p *textproc.Preprocessor) Option {
	return func(s *Scorer) {
		if p != nil {
			s.pre = p
		}
	}
}

// WithWorkers bounds the number of messages AssessAll scores at once.
func WithWorkers(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for degraded assessments.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scorer that classifies with c.
func New(c sentiment.Classifier, opts ...Option) *Scorer {
	s := &Scorer{
		classifier:      c,
		pre:             textproc.NewPreprocessor(),
		priorityAuthors: DefaultPriorityAuthors,
		authorEmojis:    DefaultAuthorEmojis,
		lateStart:       DefaultLateStart,
		earlyEnd:        DefaultEarlyEnd,
		keywords:        DefaultUrgencyKeywords,
		negativeWords:   DefaultNegativeWords,
		ngramSizes:      DefaultNGramSizes,
		threshold:       DefaultConfidenceThreshold,
		maxScore:        DefaultMaxScore,
		workers:         1,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.before = []Signal{
		&AuthorSignal{Authors: s.priorityAuthors, Emojis: s.authorEmojis, Points: 2},
		&TimeSignal{LateStart: s.lateStart, EarlyEnd: s.earlyEnd, Points: 1},
	}
	s.after = []Signal{
		NewPhraseSignal(SignalKeyword, s.keywords, 1),
		NewPhraseSignal(SignalNegativeWord, s.negativeWords, 2),
		&EmojiSignal{Points: 1},
	}
	return s
}

// MaxScore returns the saturation ceiling.
func (s *Scorer) MaxScore() int { return s.maxScore }

// ClassifierName names the sentiment backend.
func (s *Scorer) ClassifierName() string { return s.classifier.Name() }

// Preprocess returns the text the classifier sees for a message.
func (s *Scorer) Preprocess(msg *parser.ChatMessage) string {
	return s.pre.Text(msg.RawText)
}

// Assess scores a single message. Classifier failures never abort the
// assessment: the failed calls contribute nothing and the result is marked
// Degraded.
func (s *Scorer) Assess(ctx context.Context, msg *parser.ChatMessage) Assessment {
	var a Assessment
	add := func(signal string, points int, detail string) {
		a.Contributions = append(a.Contributions, Contribution{Signal: signal, Points: points, Detail: detail})
		a.RawScore += points
	}
	fail := func(what string, err error) {
		a.Degraded = true
		a.Errors = append(a.Errors, fmt.Sprintf("%s: %v", what, err))
	}

	for _, sig := range s.before {
		points, detail := sig.Evaluate(msg)
		add(sig.Name(), points, detail)
	}

	tokens := s.pre.Tokens(msg.RawText)
	text := strings.Join(tokens, " ")

	a.Label, a.RawLabel = sentiment.Unknown, sentiment.Unknown
	if text != "" {
		res, err := s.classifier.Classify(ctx, text)
		if err != nil {
			fail("classifying message", err)
			add(SignalSentiment, 0, "classifier failed")
		} else {
			a.RawLabel = res.Label
			a.Label = res.Label
			a.Confidence = res.Confidence
			if res.Confidence < s.threshold {
				a.Label = sentiment.Neutral
			}
			add(SignalSentiment, res.Label.Weight(), res.Label.String())
		}
	} else {
		add(SignalSentiment, 0, "nothing to classify")
	}

	for _, sig := range s.after {
		points, detail := sig.Evaluate(msg)
		add(sig.Name(), points, detail)
	}

	points, failures := s.rescoreNGrams(ctx, tokens)
	for _, err := range failures {
		fail("classifying n-gram", err)
	}
	add(SignalNGram, points, "")

	a.Score = min(a.RawScore, s.maxScore)

	if a.Degraded {
		s.logger.Warn("degraded urgency assessment",
			"source", msg.Source,
			"line", msg.LineNum,
			"errors", a.Errors)
	}
	return a
}

// rescoreNGrams classifies every span of the configured sizes and sums the
// weights of the successful classifications.
func (s *Scorer) rescoreNGrams(ctx context.Context, tokens []string) (int, []error) {
	var spans []string
	for _, n := range s.ngramSizes {
		spans = append(spans, textproc.NGrams(tokens, n)...)
	}
	if len(spans) == 0 {
		return 0, nil
	}

	if bc, ok := s.classifier.(sentiment.BatchClassifier); ok {
		results, err := bc.ClassifyBatch(ctx, spans)
		if err != nil {
			return 0, []error{err}
		}
		total := 0
		for _, r := range results {
			total += r.Label.Weight()
		}
		return total, nil
	}

	total := 0
	var failures []error
	for _, span := range spans {
		r, err := s.classifier.Classify(ctx, span)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		total += r.Label.Weight()
	}
	return total, failures
}

// AssessAll scores msgs with up to the configured number of workers. The
// i-th assessment belongs to the i-th message. Only context cancellation
// is returned as an error.
func (s *Scorer) AssessAll(ctx context.Context, msgs []*parser.ChatMessage) ([]Assessment, error) {
	out := make([]Assessment, len(msgs))
	workers := min(s.workers, len(msgs))

	if workers <= 1 {
		for i, msg := range msgs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = s.Assess(ctx, msg)
		}
		return out, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = s.Assess(ctx, msgs[i])
			}
		}()
	}

feed:
	for i := range msgs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
