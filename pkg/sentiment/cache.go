package sentiment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cached persists the results of another classifier in SQLite, keyed by
// backend name and text. Cache failures are logged and never fail a
// classification.
type Cached struct {
	inner  Classifier
	db     *sql.DB
	logger *slog.Logger
}

// NewCached opens (or creates) the cache database at path.
func NewCached(inner Classifier, path string, logger *slog.Logger) (*Cached, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sentiment cache: creating directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sentiment cache: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Cached{inner: inner, db: db, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sentiment cache: migration failed: %w", err)
	}
	return c, nil
}

func (c *Cached) migrate() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS sentiment_cache (
		backend    TEXT NOT NULL,
		text       TEXT NOT NULL,
		result     TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (backend, text)
	);`)
	return err
}

// Name implements Classifier.
func (c *Cached) Name() string { return c.inner.Name() }

// Classify implements Classifier.
func (c *Cached) Classify(ctx context.Context, text string) (Result, error) {
	if r, ok := c.get(ctx, text); ok {
		return r, nil
	}
	r, err := c.inner.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	c.put(ctx, text, r)
	return r, nil
}

// ClassifyBatch implements BatchClassifier. Only cache misses reach the
// wrapped classifier.
func (c *Cached) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if r, ok := c.get(ctx, text); ok {
			results[i] = r
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		fresh, err := ClassifyAll(ctx, c.inner, missTexts)
		if err != nil {
			return nil, err
		}
		for j, i := range missIdx {
			results[i] = fresh[j]
			c.put(ctx, missTexts[j], fresh[j])
		}
	}
	return results, nil
}

// Len returns the number of cached results.
func (c *Cached) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentiment_cache`).Scan(&n)
	return n, err
}

// Close closes the database and the wrapped classifier.
func (c *Cached) Close() error {
	return errors.Join(c.db.Close(), Close(c.inner))
}

func (c *Cached) get(ctx context.Context, text string) (Result, bool) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT result FROM sentiment_cache WHERE backend = ? AND text = ?`,
		c.inner.Name(), text).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false
	}
	if err != nil {
		c.logger.Warn("sentiment cache lookup failed", "error", err)
		return Result{}, false
	}
	r, err := decodeResult(data)
	if err != nil {
		c.logger.Warn("discarding corrupt sentiment cache entry", "error", err)
		return Result{}, false
	}
	return r, true
}

func (c *Cached) put(ctx context.Context, text string, r Result) {
	data, err := encodeResult(r)
	if err != nil {
		c.logger.Warn("encoding sentiment cache entry failed", "error", err)
		return
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sentiment_cache (backend, text, result) VALUES (?, ?, ?)`,
		c.inner.Name(), text, string(data))
	if err != nil {
		c.logger.Warn("sentiment cache write failed", "error", err)
	}
}
