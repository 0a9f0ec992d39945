package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/chaturgency/internal/logging"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
	"github.com/ccollicutt/chaturgency/pkg/textproc"
	"github.com/ccollicutt/chaturgency/pkg/webhook"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault loads path, or the default configuration when path is
// empty. Environment overrides apply either way.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}
	return finish(DefaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills derived fields.
// Chat sources are not required here: the CLI may supply them as arguments.
func Validate(cfg *Config) error {
	if err := validateFormat(&cfg.Format); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	if err := validateScoring(&cfg.Scoring); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	if err := validateClassifier(&cfg.Classifier); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		return fmt.Errorf("log_level: invalid level %q (must be one of %s)", cfg.LogLevel, strings.Join(logging.Levels, ", "))
	}

	return nil
}

func validateFormat(f *FormatConfig) error {
	switch f.DateOrder {
	case "":
		f.DateOrder = DefaultDateOrder
	case DateOrderAuto:
	default:
		if !parser.DateOrder(f.DateOrder).Valid() {
			return fmt.Errorf("invalid date_order %q (must be %s, %s, or %s)",
				f.DateOrder, parser.DayFirst, parser.MonthFirst, DateOrderAuto)
		}
	}
	return nil
}

func validateScoring(s *ScoringConfig) error {
	var err error
	if s.lateStart, err = parseClock(s.LateStart); err != nil {
		return fmt.Errorf("late_start: %w", err)
	}
	if s.earlyEnd, err = parseClock(s.EarlyEnd); err != nil {
		return fmt.Errorf("early_end: %w", err)
	}

	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %g", s.ConfidenceThreshold)
	}

	if s.MaxScore < 1 {
		return fmt.Errorf("max_score must be >= 1, got %d", s.MaxScore)
	}

	if s.UrgentThreshold < 1 || s.UrgentThreshold > s.MaxScore {
		return fmt.Errorf("urgent_threshold must be between 1 and max_score (%d), got %d", s.MaxScore, s.UrgentThreshold)
	}

	for _, n := range s.NGramSizes {
		if n < 2 {
			return fmt.Errorf("ngram_sizes: sizes must be >= 2, got %d", n)
		}
	}

	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}

	return nil
}

// parseClock parses "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func validateClassifier(c *ClassifierConfig) error {
	if c.Backend == "" {
		c.Backend = sentiment.BackendLexicon
	}
	if !slices.Contains(sentiment.Backends, c.Backend) {
		return fmt.Errorf("invalid backend %q (must be one of %s)", c.Backend, strings.Join(sentiment.Backends, ", "))
	}

	switch c.Backend {
	case sentiment.BackendONNX:
		if c.ONNX.ModelPath == "" {
			return errors.New("onnx.model_path is required for the onnx backend")
		}
	case sentiment.BackendHTTP:
		if err := validateEndpoint(c.HTTP.URL); err != nil {
			return fmt.Errorf("http.url: %w", err)
		}
		if c.HTTP.Timeout <= 0 {
			c.HTTP.Timeout = DefaultHTTPTimeout
		}
		if c.HTTP.MaxRetries < 0 {
			return fmt.Errorf("http.max_retries must be >= 0, got %d", c.HTTP.MaxRetries)
		}
	}

	c.HTTP.Token = expandEnvVar(c.HTTP.Token)
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if err := validateEndpoint(wh.URL); err != nil {
		return err
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if !wh.Trigger.Valid() {
		return fmt.Errorf("invalid trigger %q (must be on_urgent, always, or never)", wh.Trigger)
	}
	if wh.Trigger == "" {
		wh.Trigger = webhook.TriggerOnUrgent
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// validateEndpoint checks that raw is an absolute http(s) URL.
func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}

// AutoDateOrder reports whether the date order is detected per export.
func (c *Config) AutoDateOrder() bool {
	return c.Format.DateOrder == DateOrderAuto
}

// ParserOptions returns the parser settings. order overrides the
// configured date order when set, which is how detected orders are applied.
func (c *Config) ParserOptions(order parser.DateOrder, logger *slog.Logger) []parser.Option {
	if order == "" {
		order = parser.DateOrder(c.Format.DateOrder)
	}
	return []parser.Option{
		parser.WithDateOrder(order),
		parser.WithSystemNotices(c.Format.SystemNotices),
		parser.WithLogger(logger),
	}
}

// ScorerOptions returns the scorer settings.
func (c *Config) ScorerOptions(logger *slog.Logger) []scorer.Option {
	s := &c.Scoring
	lateStart, earlyEnd := s.Window()

	preOpts := []textproc.PreprocessorOption{textproc.WithLemmatization(s.Lemmatize)}
	if len(s.Stopwords) > 0 {
		preOpts = append(preOpts, textproc.WithStopwords(s.Stopwords))
	}

	return []scorer.Option{
		scorer.WithPriorityAuthors(s.PriorityAuthors),
		scorer.WithAuthorEmojis(s.AuthorEmojis),
		scorer.WithWindow(lateStart, earlyEnd),
		scorer.WithUrgencyKeywords(s.UrgencyKeywords),
		scorer.WithNegativeWords(s.NegativeWords),
		scorer.WithNGramSizes(s.NGramSizes),
		scorer.WithConfidenceThreshold(s.ConfidenceThreshold),
		scorer.WithMaxScore(s.MaxScore),
		scorer.WithPreprocessor(textproc.NewPreprocessor(preOpts...)),
		scorer.WithWorkers(s.Workers),
		scorer.WithLogger(logger),
	}
}

// SentimentConfig returns the classifier backend settings.
func (c *Config) SentimentConfig() sentiment.Config {
	cc := c.Classifier
	return sentiment.Config{
		Backend:   cc.Backend,
		CachePath: cc.CachePath,
		Fallback:  cc.Fallback,
		ONNX: sentiment.ONNXConfig{
			ModelPath:   cc.ONNX.ModelPath,
			VocabPath:   cc.ONNX.VocabPath,
			LibraryPath: cc.ONNX.LibraryPath,
			MaxSeqLen:   cc.ONNX.MaxSeqLen,
			Labels:      cc.ONNX.Labels,
			Threads:     cc.ONNX.Threads,
		},
		HTTP: sentiment.HTTPConfig{
			URL:        cc.HTTP.URL,
			Token:      cc.HTTP.Token,
			Timeout:    cc.HTTP.Timeout,
			MaxRetries: cc.HTTP.MaxRetries,
			Backoff:    cc.HTTP.Backoff,
		},
	}
}

// WebhookTargets returns the configured webhooks.
func (c *Config) WebhookTargets() []webhook.Target {
	targets := make([]webhook.Target, 0, len(c.Webhooks))
	for _, wh := range c.Webhooks {
		targets = append(targets, webhook.Target{
			Name:    wh.Name,
			URL:     wh.URL,
			Token:   wh.Token,
			Trigger: wh.Trigger,
			Timeout: wh.Timeout,
		})
	}
	return targets
}
