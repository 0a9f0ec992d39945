package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Chain tries classifiers in order and returns the first success.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a failover chain. At least one classifier is required.
func NewChain(logger *slog.Logger, classifiers ...Classifier) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{classifiers: classifiers, logger: logger}
}

// Name implements Classifier.
func (c *Chain) Name() string {
	names := make([]string, len(c.classifiers))
	for i, cl := range c.classifiers {
		names[i] = cl.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Classify implements Classifier.
func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	if len(c.classifiers) == 0 {
		return Result{}, fmt.Errorf("empty classifier chain: %w", ErrUnavailable)
	}

	var lastErr error
	for i, cl := range c.classifiers {
		r, err := cl.Classify(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Debug("classifier chain used fallback", "classifier", cl.Name(), "attempt", i+1)
			}
			return r, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("classifier failed, trying next",
			"classifier", cl.Name(),
			"attempt", i+1,
			"error", err)
	}
	return Result{}, fmt.Errorf("all classifiers in chain failed: %w", lastErr)
}

// Close closes every classifier in the chain.
func (c *Chain) Close() error {
	var errs []error
	for _, cl := range c.classifiers {
		errs = append(errs, Close(cl))
	}
	return errors.Join(errs...)
}
