package sentiment

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Classifier assigns a sentiment label and confidence to a text.
type Classifier interface {
	// Name identifies the backend, e.g. "lexicon" or "onnx".
	Name() string

	// Classify returns the label and confidence for text.
	Classify(ctx context.Context, text string) (Result, error)
}

// BatchClassifier is implemented by classifiers that score many texts in one
// call more cheaply than one at a time.
type BatchClassifier interface {
	Classifier

	// ClassifyBatch returns one result per text, in order.
	ClassifyBatch(ctx context.Context, texts []string) ([]Result, error)
}

// ErrUnavailable is returned when a classifier backend cannot be reached or
// has not been configured.
var ErrUnavailable = errors.New("sentiment classifier unavailable")

// StatusError is a non-success response from a remote classifier.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ClassifyAll classifies texts, using ClassifyBatch when c supports it.
func ClassifyAll(ctx context.Context, c Classifier, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if bc, ok := c.(BatchClassifier); ok {
		return bc.ClassifyBatch(ctx, texts)
	}
	results := make([]Result, len(texts))
	for i, text := range texts {
		r, err := c.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

// Close releases the resources held by c, if it holds any.
func Close(c Classifier) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
