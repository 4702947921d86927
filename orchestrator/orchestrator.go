// Package orchestrator drives one tool-augmented chat turn: it streams model
// output, detects a requested function call, executes it exactly once and
// resumes generation with the result.
package orchestrator

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/function"
	"github.com/thecxx/fcstream/render"
)

// Executor runs a function by name. *function.Registry implements it.
type Executor interface {
	Execute(ctx context.Context, name string, args json.RawMessage, env function.Env) (function.Result, error)
}

// Orchestrator is stateless between turns and safe for concurrent use;
// each turn owns its working conversation.
type Orchestrator struct {
	adapter   *fcstream.Adapter
	executor  Executor
	formatter *render.Formatter
	sink      fcstream.Sink

	logger              *slog.Logger
	queryPrompt         string
	persistStreamedText bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithQueryPrompt overrides the query synthesis prompt. The format takes
// the latest user message as its only verb.
func WithQueryPrompt(format string) Option {
	return func(o *Orchestrator) { o.queryPrompt = format }
}

// WithPersistStreamedText records the text the client already received as
// the intent-to-call message instead of the synthesized status line.
func WithPersistStreamedText(enabled bool) Option {
	return func(o *Orchestrator) { o.persistStreamedText = enabled }
}

// New returns an Orchestrator.
func New(adapter *fcstream.Adapter, executor Executor, formatter *render.Formatter, sink fcstream.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapter:     adapter,
		executor:    executor,
		formatter:   formatter,
		sink:        sink,
		logger:      slog.Default(),
		queryPrompt: DefaultQueryPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn is the input of one turn. Conversation already ends with the user
// message and is owned by the turn until it returns.
type Turn struct {
	Conversation *fcstream.Conversation
	Model        fcstream.Model
	// Functions attaches the function schema. Without it the turn is a
	// plain completion.
	Functions bool
}

// Reply is the result of a non-streaming turn.
type Reply struct {
	ID             string           `json:"id"`
	Provider       string           `json:"provider"`
	Model          string           `json:"model"`
	Message        fcstream.Message `json:"message"`
	ConversationID string           `json:"conversation_id"`
}

// Stream runs a streaming turn. Events are produced as the consumer pulls
// them; stopping the range tells the turn the client is gone.
func (o *Orchestrator) Stream(ctx context.Context, t Turn) iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		em := event.NewEmitter(t.Conversation.ID, yield)
		r := o.newRun(t, em.Emit, false)
		r.stream(ctx)
	}
}

// HandleFunctionCalls runs a non-streaming turn: one complete response is
// checked for a call, which then goes through the same execute and render
// steps as the streaming path.
func (o *Orchestrator) HandleFunctionCalls(ctx context.Context, t Turn) (*Reply, error) {
	r := o.newRun(t, func(event.Type, any) error { return nil }, true)
	return r.blocking(ctx)
}
