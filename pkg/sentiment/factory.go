package sentiment

import (
	"fmt"
	"log/slog"
)

// Backend names.
const (
	BackendLexicon = "lexicon"
	BackendONNX    = "onnx"
	BackendHTTP    = "http"
)

// Backends lists the supported backend names.
var Backends = []string{BackendLexicon, BackendONNX, BackendHTTP}

// Config selects and configures a classifier backend.
type Config struct {
	Backend string

	// CachePath enables the SQLite result cache when set. Only results of
	// the configured backend are cached, never lexicon fallbacks.
	CachePath string

	// Fallback chains the lexicon behind a model backend, so model failures
	// are answered by the lexicon instead of degrading assessments.
	Fallback bool

	ONNX ONNXConfig
	HTTP HTTPConfig
}

// New builds the classifier described by cfg. Callers release it with
// Close.
func New(cfg Config, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var c Classifier
	switch cfg.Backend {
	case "", BackendLexicon:
		c = NewLexicon()
	case BackendONNX:
		o, err := NewONNX(cfg.ONNX)
		if err != nil {
			return nil, err
		}
		c = o
	case BackendHTTP:
		h, err := NewHTTP(cfg.HTTP, logger)
		if err != nil {
			return nil, err
		}
		c = h
	default:
		return nil, fmt.Errorf("unknown classifier backend %q (valid: %v)", cfg.Backend, Backends)
	}

	// Only the primary backend is cached; lexicon fallbacks are not stored.
	if cfg.CachePath != "" {
		cached, err := NewCached(c, cfg.CachePath, logger)
		if err != nil {
			_ = Close(c)
			return nil, err
		}
		c = cached
	}

	if cfg.Fallback && c.Name() != BackendLexicon {
		c = NewChain(logger, c, NewLexicon())
	}

	logger.Debug("sentiment classifier ready", "backend", c.Name(), "cache", cfg.CachePath != "")
	return c, nil
}
