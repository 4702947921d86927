// Package testutil provides a scripted Model for tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
)

// ErrUnscripted is returned when a Model is called more often than scripted.
var ErrUnscripted = errors.New("testutil: no scripted reply left")

// Call records one request made to a Model.
type Call struct {
	Messages []fcstream.Message
	Options  *fcstream.ChatOptions
}

type scriptedStream struct {
	deltas []fcstream.Delta
	err    error
	open   error
}

type scriptedReply struct {
	msg fcstream.Message
	err error
}

// Model is a fcstream.Model whose streams and replies are scripted in order.
type Model struct {
	provider string
	name     string

	mu              sync.Mutex
	streams         []scriptedStream
	replies         []scriptedReply
	opened          []*Stream
	StreamCalls     []Call
	CompletionCalls []Call
}

var _ fcstream.Model = (*Model)(nil)

// NewModel returns an unscripted Model.
func NewModel(provider, name string) *Model {
	return &Model{provider: provider, name: name}
}

// AddStream scripts the next streaming call to yield deltas and end cleanly.
func (m *Model) AddStream(deltas ...fcstream.Delta) *Model {
	return m.AddFailingStream(nil, deltas...)
}

// AddFailingStream scripts the next streaming call to yield deltas and then
// fail with err.
func (m *Model) AddFailingStream(err error, deltas ...fcstream.Delta) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, scriptedStream{deltas: deltas, err: err})
	return m
}

// AddStreamOpenError scripts the next streaming call to fail before any delta.
func (m *Model) AddStreamOpenError(err error) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, scriptedStream{open: err})
	return m
}

// AddReply scripts the next blocking call to answer msg.
func (m *Model) AddReply(msg fcstream.Message) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{msg: msg})
	return m
}

// AddReplyError scripts the next blocking call to fail.
func (m *Model) AddReplyError(err error) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{err: err})
	return m
}

// Streams returns the streams opened so far.
func (m *Model) Streams() []*Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Stream(nil), m.opened...)
}

// Name implements fcstream.Model.
func (m *Model) Name() string { return m.name }

// Provider implements fcstream.Model.
func (m *Model) Provider() string { return m.provider }

// ChatCompletion implements fcstream.Model.
func (m *Model) ChatCompletion(ctx context.Context, messages []fcstream.Message, opts ...fcstream.ChatOption) (fcstream.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletionCalls = append(m.CompletionCalls, Call{
		Messages: append([]fcstream.Message(nil), messages...),
		Options:  fcstream.NewChatOptions(opts...),
	})
	if len(m.replies) == 0 {
		return nil, ErrUnscripted
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	if r.msg.Role == "" {
		r.msg.Role = constants.RoleAssistant
	}
	return fcstream.NewResponse(r.msg, fcstream.Meta{Provider: m.provider, Model: m.name}, time.Millisecond), nil
}

// ChatCompletionStream implements fcstream.Model.
func (m *Model) ChatCompletionStream(ctx context.Context, messages []fcstream.Message, opts ...fcstream.ChatOption) (fcstream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls = append(m.StreamCalls, Call{
		Messages: append([]fcstream.Message(nil), messages...),
		Options:  fcstream.NewChatOptions(opts...),
	})
	if len(m.streams) == 0 {
		return nil, ErrUnscripted
	}
	s := m.streams[0]
	m.streams = m.streams[1:]
	if s.open != nil {
		return nil, s.open
	}
	st := &Stream{deltas: s.deltas, err: s.err}
	m.opened = append(m.opened, st)
	return st, nil
}

// Stream is a slice-backed fcstream.Stream that records how it was consumed.
type Stream struct {
	mu     sync.Mutex
	deltas []fcstream.Delta
	err    error
	next   int
	cur    fcstream.Delta
	failed bool
	closed bool
}

// Next implements fcstream.Stream.
func (s *Stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.next >= len(s.deltas) {
		s.failed = !s.closed && s.err != nil
		return false
	}
	s.cur = s.deltas[s.next]
	s.next++
	return true
}

// Current implements fcstream.Stream.
func (s *Stream) Current() fcstream.Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Err implements fcstream.Stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return s.err
	}
	return nil
}

// Close implements fcstream.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Pulled returns how many deltas were consumed.
func (s *Stream) Pulled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Text returns a text-only delta.
func Text(s string) fcstream.Delta {
	return fcstream.Delta{Content: s}
}

// ToolCall returns a tool_calls fragment.
func ToolCall(index int, id, name, args string) fcstream.Delta {
	return fcstream.Delta{ToolCalls: []fcstream.ToolCall{{
		Index:    index,
		ID:       id,
		Type:     constants.ToolTypeFunction,
		Function: fcstream.FunctionCall{Name: name, Arguments: args},
	}}}
}

// FunctionCall returns a legacy function_call fragment.
func FunctionCall(name, args string) fcstream.Delta {
	return fcstream.Delta{FunctionCall: &fcstream.FunctionCall{Name: name, Arguments: args}}
}

// Finish returns a delta carrying only a finish reason.
func Finish(reason string) fcstream.Delta {
	return fcstream.Delta{FinishReason: reason}
}
