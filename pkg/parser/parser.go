package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ccollicutt/chaturgency/pkg/textproc"
)

// Parser converts chat export lines into ChatMessages.
type Parser struct {
	order   DateOrder
	notices []string
	logger  *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithDateOrder sets how dates are read (default DayFirst).
func WithDateOrder(order DateOrder) Option {
	return func(p *Parser) {
		if order.Valid() {
			p.order = order
		}
	}
}

// WithSystemNotices replaces the system notice substrings that cause a line
// to be skipped.
func WithSystemNotices(notices []string) Option {
	return func(p *Parser) {
		p.notices = notices
	}
}

// WithLogger sets the logger used for dropped-line diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		order:   DayFirst,
		notices: DefaultSystemNotices,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses a whole export with the default parser settings.
func Parse(raw string) *ParseResult {
	return New().Parse(raw)
}

// Parse splits raw into lines and parses each one. It never fails: lines
// that cannot be parsed are reported in ParseResult.Skipped.
func (p *Parser) Parse(raw string) *ParseResult {
	result, _ := p.ParseReader(context.Background(), strings.NewReader(raw), "")
	return result
}

// ParseReader parses every line read from r. Only read errors and context
// cancellation are returned as errors.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader, source string) (*ParseResult, error) {
	result := &ParseResult{}
	scanner := newLineScanner(r)
	lineNum := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		lineNum++
		msg, skipped := p.ParseLine(scanner.Text(), source, lineNum)
		switch {
		case msg != nil:
			result.Messages = append(result.Messages, msg)
		case skipped != nil:
			result.Skipped = append(result.Skipped, *skipped)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("reading %s: %w", displaySource(source), err)
	}
	return result, nil
}

// ParseLine parses a single export line. Exactly one of the return values is
// non-nil, except for blank lines where both are nil.
func (p *Parser) ParseLine(line, source string, lineNum int) (*ChatMessage, *SkippedLine) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if line == "" {
		return nil, nil
	}

	if p.isSystemNotice(line) {
		return nil, p.skip(line, source, lineNum, SkipSystemNotice, "")
	}

	fields, ok := matchLine(line)
	if !ok {
		return nil, p.skip(line, source, lineNum, SkipNoMatch, "")
	}

	ts, err := ParseTimestamp(fields.date, fields.clock, fields.marker, p.order)
	if err != nil {
		return nil, p.skip(line, source, lineNum, SkipBadTimestamp, err.Error())
	}

	return &ChatMessage{
		Timestamp:      ts,
		Author:         fields.author,
		RawText:        fields.text,
		NormalizedText: textproc.Normalize(fields.text),
		Source:         source,
		LineNum:        lineNum,
	}, nil
}

func (p *Parser) skip(line, source string, lineNum int, reason SkipReason, detail string) *SkippedLine {
	p.logger.Debug("skipping chat line",
		"source", displaySource(source),
		"line", lineNum,
		"reason", reason,
		"detail", detail)
	return &SkippedLine{
		Source:  source,
		LineNum: lineNum,
		Raw:     line,
		Reason:  reason,
		Detail:  detail,
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line size
	return scanner
}

func displaySource(source string) string {
	if source == "" {
		return "<input>"
	}
	return source
}

// FileSource implements MessageSource for reading chat export files.
type FileSource struct {
	files  []string
	parser *Parser

	currentFile    *os.File
	currentScanner *bufio.Scanner
	currentSource  string
	currentLine    int
	fileIndex      int

	skipped []SkippedLine
}

// NewFileSource creates a MessageSource that reads the given files in order.
func NewFileSource(files []string, p *Parser) *FileSource {
	if p == nil {
		p = New()
	}
	return &FileSource{
		files:     files,
		parser:    p,
		fileIndex: -1,
	}
}

// Next returns the next parsed message.
// Skips lines that don't parse and records them for Skipped.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*ChatMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentScanner == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		if s.currentScanner.Scan() {
			s.currentLine++
			msg, skipped := s.parser.ParseLine(s.currentScanner.Text(), s.currentSource, s.currentLine)
			if skipped != nil {
				s.skipped = append(s.skipped, *skipped)
			}
			if msg == nil {
				continue
			}
			return msg, nil
		}

		if err := s.currentScanner.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Skipped returns the lines dropped so far.
func (s *FileSource) Skipped() []SkippedLine {
	return s.skipped
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening chat export %s: %w", path, err)
	}

	s.currentFile = f
	s.currentScanner = newLineScanner(f)
	s.currentSource = path
	s.currentLine = 0
	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentScanner = nil
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}
