package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/thecxx/fcstream"
)

var _ fcstream.Sink = (*Memory)(nil)

// Memory is an in-process Sink. Stored conversations are copied on the way
// in and out so callers never alias them.
type Memory struct {
	mu    sync.Mutex
	convs map[string]*fcstream.Conversation
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{convs: make(map[string]*fcstream.Conversation)}
}

// Load implements fcstream.Sink.
func (m *Memory) Load(_ context.Context, id string) (*fcstream.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.convs[id].Clone(), nil
}

// Save implements fcstream.Sink.
func (m *Memory) Save(_ context.Context, conv *fcstream.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	stored := conv.Clone()
	if prev, ok := m.convs[conv.ID]; ok {
		stored.Title = prev.Title
	}
	m.convs[conv.ID] = stored
	return nil
}

// SetTitle implements fcstream.Sink.
func (m *Memory) SetTitle(_ context.Context, id, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if ok {
		conv.Title = title
	}
	return ok, nil
}

// Delete implements fcstream.Sink.
func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.convs[id]
	delete(m.convs, id)
	return ok, nil
}

// List implements fcstream.Sink.
func (m *Memory) List(_ context.Context) ([]fcstream.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fcstream.ConversationSummary, 0, len(m.convs))
	for _, c := range m.convs {
		out = append(out, fcstream.ConversationSummary{
			ID:        c.ID,
			Title:     c.Title,
			Provider:  c.Provider,
			Model:     c.Model,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	slices.SortFunc(out, func(a, b fcstream.ConversationSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}
