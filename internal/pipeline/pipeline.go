// Package pipeline wires configuration into the parse, score and analyze
// stages shared by the CLI and the HTTP API.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ccollicutt/chaturgency/pkg/analyzer"
	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/detector"
	"github.com/ccollicutt/chaturgency/pkg/parser"
	"github.com/ccollicutt/chaturgency/pkg/scorer"
	"github.com/ccollicutt/chaturgency/pkg/sentiment"
)

// Pipeline holds the configured stages. It is safe for concurrent use when
// its classifier is.
type Pipeline struct {
	cfg      *config.Config
	scorer   *scorer.Scorer
	detector *detector.Detector
	logger   *slog.Logger
}

// New builds a pipeline that classifies with c.
func New(cfg *config.Config, c sentiment.Classifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		scorer:   scorer.New(c, cfg.ScorerOptions(logger)...),
		detector: detector.New(),
		logger:   logger,
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Scorer returns the configured scorer.
func (p *Pipeline) Scorer() *scorer.Scorer { return p.scorer }

// Analyzer returns an analyzer using the configured urgent threshold. opts
// are applied after the defaults.
func (p *Pipeline) Analyzer(opts ...analyzer.AnalyzerOption) (*analyzer.Analyzer, error) {
	base := []analyzer.AnalyzerOption{
		analyzer.WithUrgentThreshold(p.cfg.Scoring.UrgentThreshold),
		analyzer.WithLogger(p.logger),
	}
	return analyzer.NewAnalyzer(p.scorer, append(base, opts...)...)
}

// parser returns a parser for the given date order, or the configured one
// when order is empty.
func (p *Pipeline) parser(order parser.DateOrder) *parser.Parser {
	return parser.New(p.cfg.ParserOptions(order, p.logger)...)
}

// DateOrder returns the date order for the export at path. Unless the
// configuration asks for auto detection this is the configured order.
func (p *Pipeline) DateOrder(ctx context.Context, path string) (parser.DateOrder, error) {
	if !p.cfg.AutoDateOrder() {
		return parser.DateOrder(p.cfg.Format.DateOrder), nil
	}
	result, err := p.detector.DetectFromFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("detecting date order of %s: %w", path, err)
	}
	p.logDetection(path, result)
	return result.DateOrder(), nil
}

func (p *Pipeline) logDetection(source string, result *detector.DetectionResult) {
	if result.Ambiguous() {
		p.logger.Warn("date order is ambiguous", "source", source, "assumed", string(result.DateOrder()))
		return
	}
	p.logger.Debug("date order detected", "source", source, "order", string(result.DateOrder()),
		"parsed", result.ParsedLines, "sampled", result.SampledLines)
}

// Open returns a message source over files. Text exports stream line by
// line; tabular exports are read whole. Several files are merged in
// timestamp order.
func (p *Pipeline) Open(ctx context.Context, files []string) (parser.MessageSource, error) {
	sources := make([]parser.MessageSource, 0, len(files))
	closeAll := func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}

	for _, file := range files {
		order, err := p.DateOrder(ctx, file)
		if err != nil {
			closeAll()
			return nil, err
		}

		if !parser.IsTable(file) {
			sources = append(sources, parser.NewFileSource([]string{file}, p.parser(order)))
			continue
		}

		result, err := p.readTable(ctx, file, order)
		if err != nil {
			closeAll()
			return nil, err
		}
		sources = append(sources, parser.NewSliceSource(result))
	}

	if len(sources) == 1 {
		return sources[0], nil
	}
	return parser.NewMergedSource(sources...), nil
}

func (p *Pipeline) readTable(ctx context.Context, path string, order parser.DateOrder) (*parser.ParseResult, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening chat export %s: %w", path, err)
	}
	defer f.Close()
	return p.parser(order).ParseTable(ctx, f, path)
}

// ParseText parses a text export held in memory. With auto detection the
// date order is inferred from the content itself.
func (p *Pipeline) ParseText(ctx context.Context, r io.Reader, source string) (*parser.ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	order := parser.DateOrder(p.cfg.Format.DateOrder)
	if p.cfg.AutoDateOrder() {
		result := p.detector.DetectFromLines(strings.Split(string(data), "\n"))
		p.logDetection(source, result)
		order = result.DateOrder()
	}

	return p.parser(order).ParseReader(ctx, bytes.NewReader(data), source)
}

// ParseTable parses a tabular export. A missing required column returns
// *parser.MissingColumnsError.
func (p *Pipeline) ParseTable(ctx context.Context, r io.Reader, source string) (*parser.ParseResult, error) {
	order := parser.DateOrder(p.cfg.Format.DateOrder)
	if !p.cfg.AutoDateOrder() {
		return p.parser(order).ParseTable(ctx, r, source)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	result, err := p.detector.DetectFromTable(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.logDetection(source, result)
	return p.parser(result.DateOrder()).ParseTable(ctx, bytes.NewReader(data), source)
}
