package parser

import (
	"container/heap"
	"context"
	"io"
)

// MergedSource combines several MessageSources into a single stream ordered
// by timestamp (oldest first), so exports of the same chat taken from
// different devices read as one conversation.
type MergedSource struct {
	sources []MessageSource
	heap    *messageHeap
	started bool
	seq     int
}

// NewMergedSource creates a MessageSource that merges sources by timestamp.
// Messages with equal timestamps keep source order.
func NewMergedSource(sources ...MessageSource) *MergedSource {
	return &MergedSource{
		sources: sources,
		heap:    &messageHeap{},
	}
}

// Next returns the next message in timestamp order across all sources.
// Returns io.EOF when all sources are exhausted.
func (m *MergedSource) Next(ctx context.Context) (*ChatMessage, error) {
	if !m.started {
		m.started = true
		if err := m.fill(ctx); err != nil {
			return nil, err
		}
	}

	if m.heap.Len() == 0 {
		return nil, io.EOF
	}

	item := heap.Pop(m.heap).(*heapItem)

	next, err := m.sources[item.sourceIdx].Next(ctx)
	switch {
	case err == nil:
		m.push(next, item.sourceIdx)
	case err != io.EOF:
		return nil, err
	}

	return item.msg, nil
}

// fill reads the first message from each source.
func (m *MergedSource) fill(ctx context.Context) error {
	heap.Init(m.heap)
	for i, src := range m.sources {
		msg, err := src.Next(ctx)
		if err == io.EOF {
			continue
		}
		if err != nil {
			return err
		}
		m.push(msg, i)
	}
	return nil
}

func (m *MergedSource) push(msg *ChatMessage, sourceIdx int) {
	m.seq++
	heap.Push(m.heap, &heapItem{msg: msg, sourceIdx: sourceIdx, seq: m.seq})
}

// Skipped returns the diagnostics of every source, in source order.
func (m *MergedSource) Skipped() []SkippedLine {
	var all []SkippedLine
	for _, src := range m.sources {
		all = append(all, src.Skipped()...)
	}
	return all
}

// Close releases all source resources.
func (m *MergedSource) Close() error {
	var firstErr error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type heapItem struct {
	msg       *ChatMessage
	sourceIdx int
	seq       int
}

// messageHeap orders by timestamp, then source index, then arrival.
type messageHeap []*heapItem

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.msg.Timestamp.Equal(b.msg.Timestamp) {
		return a.msg.Timestamp.Before(b.msg.Timestamp)
	}
	if a.sourceIdx != b.sourceIdx {
		return a.sourceIdx < b.sourceIdx
	}
	return a.seq < b.seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(*heapItem))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
