package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// mockSource is a test MessageSource that returns predefined messages.
type mockSource struct {
	msgs    []*parser.ChatMessage
	skipped []parser.SkippedLine
	err     error
	index   int
}

func (m *mockSource) Next(ctx context.Context) (*parser.ChatMessage, error) {
	if m.index >= len(m.msgs) {
		if m.err != nil {
			return nil, m.err
		}
		return nil, io.EOF
	}
	msg := m.msgs[m.index]
	m.index++
	return msg, nil
}

func (m *mockSource) Skipped() []parser.SkippedLine { return m.skipped }

func (m *mockSource) Close() error { return nil }

var baseTime = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func message(author, text string, offset time.Duration) *parser.ChatMessage {
	return &parser.ChatMessage{
		Timestamp: baseTime.Add(offset),
		Author:    author,
		RawText:   text,
		Source:    "chat.txt",
	}
}

func createTestAnalyzer(t *testing.T, opts ...AnalyzerOption) *Analyzer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scorer.New(sentiment.NewLexicon(), scorer.WithLogger(logger))
	a, err := NewAnalyzer(s, append([]AnalyzerOption{WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	return a
}

func TestNewAnalyzer(t *testing.T) {
	a := createTestAnalyzer(t)
	if a.UrgentThreshold() != DefaultUrgentThreshold {
		t.Errorf("UrgentThreshold() = %d, want %d", a.UrgentThreshold(), DefaultUrgentThreshold)
	}
}

func TestNewAnalyzer_NoScorer(t *testing.T) {
	if _, err := NewAnalyzer(nil); err == nil {
		t.Error("NewAnalyzer(nil) expected error")
	}
}

func TestNewAnalyzer_InvertedTimeRange(t *testing.T) {
	s := scorer.New(sentiment.NewLexicon())
	_, err := NewAnalyzer(s, WithTimeRange(baseTime, baseTime.Add(-time.Hour)))
	if err == nil {
		t.Error("NewAnalyzer() expected error for inverted time range")
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := createTestAnalyzer(t)

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			message("Pedro", "hola como va todo", 0),
			message("Mamá", "me caí, necesito ayuda por favor", 11*time.Hour),
			message("Pedro", "todo bien por aquí", time.Minute),
		},
		skipped: []parser.SkippedLine{
			{Source: "chat.txt", LineNum: 1, Reason: parser.SkipSystemNotice},
		},
	}

	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(result.Rows))
	}
	for i, row := range result.Rows {
		if row.Message != source.msgs[i] {
			t.Errorf("Rows[%d] is not message %d", i, i)
		}
	}
	if got := result.Rows[1].Assessment.Score; got < 3 {
		t.Errorf("priority late-night score = %d, want at least 3", got)
	}

	if len(result.Skipped) != 1 {
		t.Errorf("len(Skipped) = %d, want 1", len(result.Skipped))
	}
	if result.Metadata.MessagesRead != 3 {
		t.Errorf("MessagesRead = %d, want 3", result.Metadata.MessagesRead)
	}
	if len(result.Metadata.Sources) != 1 || result.Metadata.Sources[0] != "chat.txt" {
		t.Errorf("Sources = %v, want [chat.txt]", result.Metadata.Sources)
	}
	if result.Metadata.RunID == "" {
		t.Error("RunID is empty")
	}
	if result.Metadata.Classifier != "lexicon" {
		t.Errorf("Classifier = %q, want lexicon", result.Metadata.Classifier)
	}
	if result.Metadata.EndTime.Before(result.Metadata.StartTime) {
		t.Error("EndTime before StartTime")
	}
}

func TestAnalyzer_Histogram(t *testing.T) {
	a := createTestAnalyzer(t)

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			message("Pedro", "hola", 0),
			message("Pedro", "hola", time.Minute),
			message("Mamá", "hola", 11*time.Hour),
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Histogram) != scorer.DefaultMaxScore+1 {
		t.Fatalf("len(Histogram) = %d, want %d", len(result.Histogram), scorer.DefaultMaxScore+1)
	}
	total := 0
	for score, bin := range result.Histogram {
		if bin.Score != score {
			t.Errorf("Histogram[%d].Score = %d", score, bin.Score)
		}
		total += bin.Count
	}
	if total != len(result.Rows) {
		t.Errorf("histogram total = %d, want %d", total, len(result.Rows))
	}
	for _, row := range result.Rows {
		if result.Histogram[row.Assessment.Score].Count == 0 {
			t.Errorf("score %d missing from histogram", row.Assessment.Score)
		}
	}
}

func TestAnalyzer_Phrases(t *testing.T) {
	a := createTestAnalyzer(t, WithTopN(2))

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			message("Pedro", "necesito ayuda ahora", 0),
			message("Ana", "necesito ayuda mañana", time.Minute),
			message("Luis", "ayuda ahora mismo", 2*time.Minute),
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.TopBigrams) != 2 {
		t.Fatalf("len(TopBigrams) = %d, want 2", len(result.TopBigrams))
	}
	// "ayuda ahora" 2, "necesito ayuda" 2; ties break alphabetically.
	if result.TopBigrams[0].Phrase != "ayuda ahora" || result.TopBigrams[0].Count != 2 {
		t.Errorf("TopBigrams[0] = %+v, want ayuda ahora x2", result.TopBigrams[0])
	}
	if result.TopBigrams[1].Phrase != "necesito ayuda" || result.TopBigrams[1].Count != 2 {
		t.Errorf("TopBigrams[1] = %+v, want necesito ayuda x2", result.TopBigrams[1])
	}
	if len(result.TopTrigrams) != 2 {
		t.Errorf("len(TopTrigrams) = %d, want 2", len(result.TopTrigrams))
	}
}

func TestAnalyzer_PhrasesKeepStopwords(t *testing.T) {
	a := createTestAnalyzer(t)

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			{Timestamp: baseTime, Author: "Mamá", RawText: "Por favor, ven a casa", NormalizedText: "por favor ven a casa"},
			{Timestamp: baseTime.Add(time.Minute), Author: "Mamá", RawText: "ven a casa por favor"},
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	bigrams := make(map[string]int)
	for _, pc := range result.TopBigrams {
		bigrams[pc.Phrase] = pc.Count
	}
	for _, want := range []string{"por favor", "ven a", "a casa"} {
		if bigrams[want] != 2 {
			t.Errorf("bigram %q count = %d, want 2 (table %v)", want, bigrams[want], result.TopBigrams)
		}
	}

	var found bool
	for _, pc := range result.TopTrigrams {
		if pc.Phrase == "ven a casa" {
			found = pc.Count == 2
		}
	}
	if !found {
		t.Errorf("TopTrigrams = %v, want ven a casa x2", result.TopTrigrams)
	}
}

func TestAnalyzer_WithTimeRange(t *testing.T) {
	a := createTestAnalyzer(t, WithTimeRange(baseTime.Add(5*time.Minute), baseTime.Add(25*time.Minute)))

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			// Before range - should be filtered
			message("Pedro", "uno", 0),
			// In range, both ends inclusive
			message("Pedro", "dos", 5*time.Minute),
			message("Pedro", "tres", 25*time.Minute),
			// After range
			message("Pedro", "cuatro", 26*time.Minute),
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Rows) != 2 {
		t.Errorf("len(Rows) = %d, want 2", len(result.Rows))
	}
	if result.Metadata.MessagesRead != 4 {
		t.Errorf("MessagesRead = %d, want 4", result.Metadata.MessagesRead)
	}
	if result.Metadata.TimeRange == nil {
		t.Error("TimeRange metadata not set")
	}
}

func TestAnalyzer_WithAuthorFilter(t *testing.T) {
	a := createTestAnalyzer(t, WithAuthorFilter([]string{"mamá", " Jefe "}))

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			message("Mamá", "hola", 0),
			message("Pedro", "hola", time.Minute),
			message("Jefe", "hola", 2*time.Minute),
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
	if result.Rows[0].Message.Author != "Mamá" || result.Rows[1].Message.Author != "Jefe" {
		t.Errorf("authors = %s, %s", result.Rows[0].Message.Author, result.Rows[1].Message.Author)
	}
}

func TestAnalyzer_Empty(t *testing.T) {
	a := createTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), &mockSource{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !result.Empty() {
		t.Error("Empty() = false, want true")
	}
	if result.HasUrgent() {
		t.Error("HasUrgent() = true, want false")
	}
	if len(result.Histogram) != scorer.DefaultMaxScore+1 {
		t.Errorf("len(Histogram) = %d, want %d", len(result.Histogram), scorer.DefaultMaxScore+1)
	}
}

func TestAnalyzer_Urgent(t *testing.T) {
	a := createTestAnalyzer(t, WithUrgentThreshold(3))

	source := &mockSource{
		msgs: []*parser.ChatMessage{
			message("Pedro", "hola", 0),
			message("Mamá", "urgente", 11*time.Hour),
		},
	}
	result, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.UrgentCount() != 1 {
		t.Errorf("UrgentCount() = %d, want 1", result.UrgentCount())
	}
	if !result.HasUrgent() {
		t.Error("HasUrgent() = false, want true")
	}
	if result.MaxScore() < 3 {
		t.Errorf("MaxScore() = %d, want at least 3", result.MaxScore())
	}
}

func TestAnalyzer_Reuse(t *testing.T) {
	a := createTestAnalyzer(t)

	run := func() *AnalysisResult {
		source := &mockSource{msgs: []*parser.ChatMessage{
			message("Pedro", "necesito ayuda ahora", 0),
		}}
		result, err := a.Analyze(context.Background(), source)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		return result
	}

	first, second := run(), run()
	if first.TopBigrams[0].Count != 1 || second.TopBigrams[0].Count != 1 {
		t.Errorf("bigram counts = %d, %d, want 1, 1", first.TopBigrams[0].Count, second.TopBigrams[0].Count)
	}
	if first.Metadata.RunID == second.Metadata.RunID {
		t.Error("RunID repeated across runs")
	}
}

func TestAnalyzer_SourceError(t *testing.T) {
	a := createTestAnalyzer(t)

	boom := errors.New("disk on fire")
	_, err := a.Analyze(context.Background(), &mockSource{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Analyze() error = %v, want %v", err, boom)
	}
}

func TestAnalyzer_ContextCancellation(t *testing.T) {
	a := createTestAnalyzer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &mockSource{msgs: []*parser.ChatMessage{message("Pedro", "hola", 0)}}
	if _, err := a.Analyze(ctx, source); !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}
