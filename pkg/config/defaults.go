package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/analyzer"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// Default values for configuration.
const (
	DefaultDateOrder      = string(parser.DayFirst)
	DateOrderAuto         = "auto"
	DefaultLateStart      = "20:00"
	DefaultEarlyEnd       = "05:00"
	DefaultWorkers        = 4
	DefaultWebhookTimeout = 10 * time.Second
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultHTTPRetries    = 2
	DefaultServerAddr     = ":8080"
	DefaultMaxBodyBytes   = 10 << 20
	DefaultLogLevel       = "info"
)

// Environment variable names.
const (
	EnvChatSources         = "CHATURGENCY_CHAT_SOURCES"
	EnvClassifier          = "CHATURGENCY_CLASSIFIER"
	EnvConfidenceThreshold = "CHATURGENCY_CONFIDENCE_THRESHOLD"
	EnvLogLevel            = "CHATURGENCY_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ChatSources: []string{},
		Format: FormatConfig{
			DateOrder:     DefaultDateOrder,
			SystemNotices: slices.Clone(parser.DefaultSystemNotices),
		},
		Scoring: ScoringConfig{
			PriorityAuthors:     slices.Clone(scorer.DefaultPriorityAuthors),
			AuthorEmojis:        slices.Clone(scorer.DefaultAuthorEmojis),
			LateStart:           DefaultLateStart,
			EarlyEnd:            DefaultEarlyEnd,
			UrgencyKeywords:     slices.Clone(scorer.DefaultUrgencyKeywords),
			NegativeWords:       slices.Clone(scorer.DefaultNegativeWords),
			ConfidenceThreshold: scorer.DefaultConfidenceThreshold,
			MaxScore:            scorer.DefaultMaxScore,
			NGramSizes:          slices.Clone(scorer.DefaultNGramSizes),
			UrgentThreshold:     analyzer.DefaultUrgentThreshold,
			Workers:             DefaultWorkers,
			Lemmatize:           true,
			lateStart:           scorer.DefaultLateStart,
			earlyEnd:            scorer.DefaultEarlyEnd,
		},
		Classifier: ClassifierConfig{
			Backend: sentiment.BackendLexicon,
			HTTP: HTTPConfig{
				Timeout:    DefaultHTTPTimeout,
				MaxRetries: DefaultHTTPRetries,
			},
		},
		Server: ServerConfig{
			Addr:         DefaultServerAddr,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		LogLevel: DefaultLogLevel,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	if sources := os.Getenv(EnvChatSources); sources != "" {
		c.ChatSources = nil
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.ChatSources = append(c.ChatSources, s)
			}
		}
	}

	if backend := os.Getenv(EnvClassifier); backend != "" {
		c.Classifier.Backend = backend
	}

	if raw := os.Getenv(EnvConfidenceThreshold); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfidenceThreshold, err)
		}
		c.Scoring.ConfidenceThreshold = v
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}

	return nil
}
