package sentiment

import (
	"bufio"
	"fmt"
	"os"
)

// vocab is a WordPiece vocabulary where the 0-based line number of a token
// in vocab.txt is its ID.
type vocab struct {
	ids map[string]int64

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path) // #nosec G304 -- configured model path
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	ids := make(map[string]int64, 32000)
	var n int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids[scanner.Text()] = n
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: reading %s: %w", path, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", path)
	}

	v := &vocab{ids: ids}
	for _, special := range []struct {
		token string
		dest  *int64
	}{
		{"[PAD]", &v.padID},
		{"[UNK]", &v.unkID},
		{"[CLS]", &v.clsID},
		{"[SEP]", &v.sepID},
	} {
		id, ok := ids[special.token]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", special.token)
		}
		*special.dest = id
	}
	return v, nil
}

func (v *vocab) lookup(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unkID
}

func (v *vocab) contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}
