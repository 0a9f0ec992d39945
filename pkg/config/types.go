// Package config provides configuration loading and validation for chaturgency.
package config

import (
	"time"

	"github.com/ccollicutt/chaturgency/pkg/webhook"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	ChatSources []string         `yaml:"chat_sources"`
	Format      FormatConfig     `yaml:"format"`
	Scoring     ScoringConfig    `yaml:"scoring"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Webhooks    []WebhookConfig  `yaml:"webhooks,omitempty"`
	Server      ServerConfig     `yaml:"server"`
	LogLevel    string           `yaml:"log_level,omitempty"`
}

// FormatConfig describes how chat exports are read.
type FormatConfig struct {
	// DateOrder is day_first, month_first or auto. Auto samples each
	// export and picks the order that parses it.
	DateOrder string `yaml:"date_order"`

	// SystemNotices are substrings that mark a line or row as a system
	// notice to skip.
	SystemNotices []string `yaml:"system_notices,omitempty"`
}

// ScoringConfig tunes the urgency rubric.
type ScoringConfig struct {
	PriorityAuthors []string `yaml:"priority_authors"`
	AuthorEmojis    []string `yaml:"author_emojis"`

	// LateStart and EarlyEnd bound the late-night window as "HH:MM" clock
	// times. Both ends are inclusive.
	LateStart string `yaml:"late_start"`
	EarlyEnd  string `yaml:"early_end"`

	UrgencyKeywords []string `yaml:"urgency_keywords"`
	NegativeWords   []string `yaml:"negative_words"`

	// ConfidenceThreshold is the classifier confidence below which the
	// label is reported as Neutral.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// MaxScore is the saturation ceiling.
	MaxScore int `yaml:"max_score"`

	// NGramSizes are the span lengths rescored by the classifier. An empty
	// list disables rescoring.
	NGramSizes []int `yaml:"ngram_sizes"`

	// UrgentThreshold is the score at which a message counts as urgent.
	UrgentThreshold int `yaml:"urgent_threshold"`

	// Workers bounds concurrent classification.
	Workers int `yaml:"workers"`

	// Stopwords replaces the built-in stopword list when set.
	Stopwords []string `yaml:"stopwords,omitempty"`

	// Lemmatize reduces tokens to their lemma before classification.
	Lemmatize bool `yaml:"lemmatize"`

	// parsed clock offsets (populated during validation)
	lateStart time.Duration
	earlyEnd  time.Duration
}

// Window returns the parsed late-night window as offsets from midnight.
func (s *ScoringConfig) Window() (lateStart, earlyEnd time.Duration) {
	return s.lateStart, s.earlyEnd
}

// ClassifierConfig selects the sentiment backend.
type ClassifierConfig struct {
	// Backend is lexicon, onnx or http.
	Backend string `yaml:"backend"`

	// CachePath enables the SQLite result cache when set.
	CachePath string `yaml:"cache_path,omitempty"`

	// Fallback answers model failures with the lexicon.
	Fallback bool `yaml:"fallback,omitempty"`

	ONNX ONNXConfig `yaml:"onnx,omitempty"`
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// ONNXConfig locates a local sequence classification model.
type ONNXConfig struct {
	ModelPath   string   `yaml:"model_path"`
	VocabPath   string   `yaml:"vocab_path,omitempty"`
	LibraryPath string   `yaml:"library_path,omitempty"`
	MaxSeqLen   int      `yaml:"max_seq_len,omitempty"`
	Labels      []string `yaml:"labels,omitempty"`
	Threads     int      `yaml:"threads,omitempty"`
}

// HTTPConfig points at a remote inference endpoint.
type HTTPConfig struct {
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
	Backoff    time.Duration `yaml:"backoff,omitempty"`
}

// WebhookConfig defines a webhook endpoint for sending reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_urgent" if not specified.
	Trigger webhook.Trigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`
}
