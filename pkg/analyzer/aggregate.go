package analyzer

import (
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// DefaultTopN is the length of each phrase frequency table.
const DefaultTopN = 10

// phraseAggregator counts the n-word spans of every message.
type phraseAggregator struct {
	n       int
	topN    int
	counter *textproc.PhraseCounter
}

func newPhraseAggregator(n, topN int) *phraseAggregator {
	return &phraseAggregator{n: n, topN: topN, counter: textproc.NewPhraseCounter()}
}

func (p *phraseAggregator) Name() string {
	if p.n == 2 {
		return "bigrams"
	}
	return "trigrams"
}

func (p *phraseAggregator) Add(_ *parser.ChatMessage, words []string, _ scorer.Assessment) {
	p.counter.Add(textproc.NGrams(words, p.n)...)
}

func (p *phraseAggregator) Finalize(result *AnalysisResult) {
	top := p.counter.Top(p.topN)
	if p.n == 2 {
		result.TopBigrams = top
	} else {
		result.TopTrigrams = top
	}
}

func (p *phraseAggregator) Reset() {
	p.counter = textproc.NewPhraseCounter()
}

// histogramAggregator counts messages per score.
type histogramAggregator struct {
	counts []int
}

func newHistogramAggregator(maxScore int) *histogramAggregator {
	return &histogramAggregator{counts: make([]int, maxScore+1)}
}

func (h *histogramAggregator) Name() string { return "histogram" }

func (h *histogramAggregator) Add(_ *parser.ChatMessage, _ []string, a scorer.Assessment) {
	score := min(max(a.Score, 0), len(h.counts)-1)
	h.counts[score]++
}

func (h *histogramAggregator) Finalize(result *AnalysisResult) {
	bins := make([]HistogramBin, len(h.counts))
	for score, count := range h.counts {
		bins[score] = HistogramBin{Score: score, Count: count}
	}
	result.Histogram = bins
}

func (h *histogramAggregator) Reset() {
	clear(h.counts)
}
