package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// HTTPConfig configures a remote inference endpoint.
type HTTPConfig struct {
	// URL receives POST {"inputs": "<text>"}.
	URL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt on
	// transport errors, 5xx and 429 responses.
	MaxRetries int

	// Backoff is the delay before the first retry; it doubles on each
	// following retry.
	Backoff time.Duration
}

// HTTP classifies text through a remote inference API.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTP creates a remote classifier.
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http classifier: url not set: %w", ErrUnavailable)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Name implements Classifier.
func (h *HTTP) Name() string { return "http" }

// Classify implements Classifier.
func (h *HTTP) Classify(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return Result{}, fmt.Errorf("http classifier: marshaling request: %w", err)
	}

	body, err := h.doWithRetry(ctx, payload)
	if err != nil {
		return Result{}, err
	}

	result, err := decodeInference(body)
	if err != nil {
		return Result{}, fmt.Errorf("http classifier: %w", err)
	}
	return result, nil
}

func (h *HTTP) doWithRetry(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			base := h.cfg.Backoff << (attempt - 1)
			backoff := base + time.Duration(rand.Int64N(int64(base/2+1)))
			h.logger.Warn("retrying classifier request",
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := h.do(ctx, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		return nil, fmt.Errorf("http classifier: giving up after %d attempts: %w", h.cfg.MaxRetries+1, lastErr)
	}
	return nil, fmt.Errorf("http classifier: giving up after %d attempts: %v: %w", h.cfg.MaxRetries+1, lastErr, ErrUnavailable)
}

func (h *HTTP) do(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chaturgency/1.0")
	if h.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodeInference accepts a single {"label","score"} object, a list of them,
// or a list of lists as returned by text-classification pipelines. The
// highest scoring candidate wins.
func decodeInference(body []byte) (Result, error) {
	var candidates []resultJSON

	var single resultJSON
	var flat []resultJSON
	var nested [][]resultJSON
	switch {
	case json.Unmarshal(body, &single) == nil && single.Label != "":
		candidates = []resultJSON{single}
	case json.Unmarshal(body, &flat) == nil && len(flat) > 0:
		candidates = flat
	case json.Unmarshal(body, &nested) == nil && len(nested) > 0:
		candidates = nested[0]
	}

	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("unrecognized response: %.200s", body)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return Result{Label: ParseLabel(best.Label), Confidence: best.Score}, nil
}
