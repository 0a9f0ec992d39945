package parser

import (
	"context"
	"io"
)

// MessageSource provides an iterator over parsed chat messages.
// Implementations must be safe for sequential access (not concurrent).
type MessageSource interface {
	// Next returns the next parsed message.
	// Returns io.EOF when no more messages are available.
	// Lines that cannot be parsed are skipped and recorded for Skipped.
	Next(ctx context.Context) (*ChatMessage, error)

	// Skipped returns the diagnostics for lines dropped so far.
	Skipped() []SkippedLine

	// Close releases any resources held by the source.
	Close() error
}

// SliceSource serves an already parsed result as a MessageSource.
type SliceSource struct {
	result *ParseResult
	pos    int
}

// NewSliceSource wraps a ParseResult.
func NewSliceSource(result *ParseResult) *SliceSource {
	if result == nil {
		result = &ParseResult{}
	}
	return &SliceSource{result: result}
}

// Next returns the next message in slice order.
func (s *SliceSource) Next(ctx context.Context) (*ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.result.Messages) {
		return nil, io.EOF
	}
	msg := s.result.Messages[s.pos]
	s.pos++
	return msg, nil
}

// Skipped returns the diagnostics of the wrapped result.
func (s *SliceSource) Skipped() []SkippedLine {
	return s.result.Skipped
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}
