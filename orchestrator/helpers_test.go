package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/function"
	"github.com/thecxx/fcstream/orchestrator"
	"github.com/thecxx/fcstream/render"
	"github.com/thecxx/fcstream/store"
	"github.com/thecxx/fcstream/testutil"
)

var discard = slog.New(slog.DiscardHandler)

// countingExecutor records how often Execute ran.
type countingExecutor struct {
	inner orchestrator.Executor
	calls atomic.Int32

	mu   sync.Mutex
	args []json.RawMessage
}

func (c *countingExecutor) Execute(ctx context.Context, name string, args json.RawMessage, env function.Env) (function.Result, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.args = append(c.args, append(json.RawMessage(nil), args...))
	c.mu.Unlock()
	return c.inner.Execute(ctx, name, args, env)
}

func (c *countingExecutor) lastArgs() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.args) == 0 {
		return nil
	}
	return c.args[len(c.args)-1]
}

type stubSearcher struct {
	mu      sync.Mutex
	hits    []function.Hit
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]function.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.hits, nil
}

func (s *stubSearcher) lastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

type topicFunc func(ctx context.Context, category string, limit int) ([]function.Topic, error)

func (f topicFunc) Topics(ctx context.Context, category string, limit int) ([]function.Topic, error) {
	return f(ctx, category, limit)
}

// flakySink fails every Save once failAfter saves succeeded.
type flakySink struct {
	*store.Memory
	failAfter int32
	saves     atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (f *flakySink) Save(ctx context.Context, conv *fcstream.Conversation) error {
	if f.saves.Add(1) > f.failAfter {
		return errDiskFull
	}
	return f.Memory.Save(ctx, conv)
}

type fixture struct {
	model     *testutil.Model
	sink      fcstream.Sink
	memory    *store.Memory
	searcher  *stubSearcher
	executor  *countingExecutor
	registry  *function.Registry
	formatter *render.Formatter
	orch      *orchestrator.Orchestrator
}

type fixtureOption func(*fixture, *[]orchestrator.Option)

func withRenderer(name string, r render.Renderer) fixtureOption {
	return func(f *fixture, _ *[]orchestrator.Option) { f.formatter.Register(name, r) }
}

// withFailingSaves makes every Save after the first n fail.
func withFailingSaves(n int32) fixtureOption {
	return func(f *fixture, _ *[]orchestrator.Option) {
		f.sink = &flakySink{Memory: f.memory, failAfter: n}
	}
}

func withOptions(opts ...orchestrator.Option) fixtureOption {
	return func(_ *fixture, o *[]orchestrator.Option) { *o = append(*o, opts...) }
}

func newFixture(t *testing.T, provider string, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		model:     testutil.NewModel(provider, "test-model"),
		memory:    store.NewMemory(),
		searcher:  &stubSearcher{},
		registry:  function.NewRegistry(function.WithLogger(discard)),
		formatter: render.Default(),
	}
	f.sink = f.memory
	orchOpts := []orchestrator.Option{orchestrator.WithLogger(discard)}
	for _, opt := range opts {
		opt(f, &orchOpts)
	}

	require.NoError(t, f.registry.Register("web_search", function.WebSearch(f.searcher)))
	f.executor = &countingExecutor{inner: f.registry}

	adapter := fcstream.NewAdapter(fcstream.WithSchemaSource(f.registry))
	f.orch = orchestrator.New(adapter, f.executor, f.formatter, f.sink, orchOpts...)
	return f
}

// turn starts a conversation holding one user message.
func (f *fixture) turn(t *testing.T, message string) orchestrator.Turn {
	t.Helper()
	conv := &fcstream.Conversation{ID: "conv-1", Provider: f.model.Provider(), Model: f.model.Name()}
	conv.Append(fcstream.UserMessage(message))
	require.NoError(t, f.memory.Save(context.Background(), conv))
	return orchestrator.Turn{Conversation: conv, Model: f.model, Functions: true}
}

func (f *fixture) stored(t *testing.T) []fcstream.Message {
	t.Helper()
	conv, err := f.memory.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv.Messages
}

func drain(seq iter.Seq[event.Event]) []event.Event {
	var out []event.Event
	for e := range seq {
		out = append(out, e)
	}
	return out
}

func types(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func contents(events []event.Event) string {
	var s string
	for _, e := range events {
		if e.Type == event.TypeContent {
			s += e.Content.(string)
		}
	}
	return s
}

func roles(msgs []fcstream.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

// requireProtocol checks the ordering rules every streaming turn obeys.
func requireProtocol(t *testing.T, events []event.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	require.Equal(t, event.TypeStreamStart, events[0].Type)

	terminals := 0
	muted := false
	for i, e := range events {
		if e.Type.Terminal() {
			terminals++
			require.Equal(t, len(events)-1, i, "terminal event must be last")
		}
		switch e.Type {
		case event.TypeFunctionCallDetected:
			muted = true
		case event.TypeGeneratingResponse, event.TypeContentDirect:
			muted = false
		case event.TypeContent:
			require.False(t, muted, "content after function_call_detected")
		}
		require.Equal(t, "conv-1", e.ConversationID)
	}
	require.Equal(t, 1, terminals)
}
