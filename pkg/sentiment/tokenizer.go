package sentiment

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSeqLen is the default sequence length, [CLS] and [SEP] included.
const DefaultMaxSeqLen = 128

// maxWordRunes is the longest word WordPiece tries to split.
const maxWordRunes = 100

// encodedBatch is a batch of token sequences flattened to
// [batchSize * seqLen] for the model inputs.
type encodedBatch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	batchSize     int64
	seqLen        int64
}

// wordPiece is an uncased BERT WordPiece tokenizer.
type wordPiece struct {
	vocab     *vocab
	maxSeqLen int
}

func newWordPiece(v *vocab, maxSeqLen int) *wordPiece {
	if maxSeqLen < 3 {
		maxSeqLen = DefaultMaxSeqLen
	}
	return &wordPiece{vocab: v, maxSeqLen: maxSeqLen}
}

// encode returns the IDs of [CLS] tokens... [SEP], truncated to maxSeqLen.
func (w *wordPiece) encode(text string) []int64 {
	var pieces []string
	for _, word := range basicTokens(text) {
		pieces = append(pieces, w.split(word)...)
	}
	if limit := w.maxSeqLen - 2; len(pieces) > limit {
		pieces = pieces[:limit]
	}

	ids := make([]int64, 0, len(pieces)+2)
	ids = append(ids, w.vocab.clsID)
	for _, p := range pieces {
		ids = append(ids, w.vocab.lookup(p))
	}
	return append(ids, w.vocab.sepID)
}

// encodeBatch pads every sequence to the longest one in the batch.
func (w *wordPiece) encodeBatch(texts []string) encodedBatch {
	seqs := make([][]int64, len(texts))
	var seqLen int
	for i, text := range texts {
		seqs[i] = w.encode(text)
		if len(seqs[i]) > seqLen {
			seqLen = len(seqs[i])
		}
	}

	total := len(texts) * seqLen
	b := encodedBatch{
		inputIDs:      make([]int64, total),
		attentionMask: make([]int64, total),
		tokenTypeIDs:  make([]int64, total),
		batchSize:     int64(len(texts)),
		seqLen:        int64(seqLen),
	}
	for i, seq := range seqs {
		row := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j < len(seq) {
				b.inputIDs[row+j] = seq[j]
				b.attentionMask[row+j] = 1
			} else {
				b.inputIDs[row+j] = w.vocab.padID
			}
		}
	}
	return b
}

// split breaks a word into the longest matching vocabulary pieces, with
// "##" marking continuations. Words that cannot be covered become [UNK].
func (w *wordPiece) split(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{"[UNK]"}
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		var piece string
		for ; end > start; end-- {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if w.vocab.contains(candidate) {
				piece = candidate
				break
			}
		}
		if piece == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, piece)
		start = end
	}
	return pieces
}

// basicTokens cleans, lowercases and strips accents from text, then splits
// it on whitespace and punctuation. Punctuation marks become tokens.
func basicTokens(text string) []string {
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			cleaned.WriteRune(r)
		}
	}

	var stripped strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(cleaned.String())) {
		if !unicode.Is(unicode.Mn, r) {
			stripped.WriteRune(r)
		}
	}

	var tokens []string
	for _, field := range strings.Fields(stripped.String()) {
		start := 0
		for i, r := range field {
			if !isBertPunct(r) {
				continue
			}
			if i > start {
				tokens = append(tokens, field[start:i])
			}
			tokens = append(tokens, string(r))
			start = i + len(string(r))
		}
		if start < len(field) {
			tokens = append(tokens, field[start:])
		}
	}
	return tokens
}

// isBertPunct treats all non-alphanumeric ASCII symbols as punctuation, as
// BERT does, in addition to the Unicode punctuation categories.
func isBertPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
