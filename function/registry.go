package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/thecxx/fcstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/thecxx/fcstream/function"

// Env is the per-call context handed to a handler.
type Env struct {
	ConversationID string
	Provider       string
	Model          string
}

// Handler runs one function. Collaborators such as storage are injected
// when the handler is constructed, not passed per call.
type Handler interface {
	Call(ctx context.Context, args json.RawMessage, env Env) (Result, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, args json.RawMessage, env Env) (Result, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, args json.RawMessage, env Env) (Result, error) {
	return f(ctx, args, env)
}

// Declarer is implemented by handlers that describe their own parameters.
type Declarer interface {
	Declaration() fcstream.Tool
}

// Registry maps function names to handlers. Registration happens at startup;
// Execute is safe for concurrent use and keeps no state between calls.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	opts     registryOptions
}

type registryOptions struct {
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*registryOptions)

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *registryOptions) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *registryOptions) { o.logger = logger }
}

// WithTracer sets the tracer used for execution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *registryOptions) { o.tracer = tracer }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	o := registryOptions{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{handlers: make(map[string]Handler), opts: o}
}

// Register adds h under name. Registering a name twice is a configuration
// error and returns ErrDuplicateFunction.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register %q: invalid handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateFunction)
	}
	r.handlers[name] = h
	return nil
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Declarations implements fcstream.SchemaSource. Every registered function
// is offered to every provider and model.
func (r *Registry) Declarations(provider, model string) []fcstream.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]fcstream.Tool, 0, len(names))
	for _, name := range names {
		if d, ok := r.handlers[name].(Declarer); ok {
			tools = append(tools, d.Declaration())
			continue
		}
		tools = append(tools, fcstream.DefineFunction(name, ""))
	}
	return tools
}

// Execute runs the handler registered under name. An unregistered name
// returns ErrUnknownFunction without side effects.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, env Env) (res Result, err error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownFunction)
	}

	if r.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.timeout)
		defer cancel()
	}

	ctx, span := r.opts.tracer.Start(ctx, "function.execute", trace.WithAttributes(
		attribute.String("function.name", name),
		attribute.String("conversation.id", env.ConversationID),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "function failed")
		}
		span.End()
		r.opts.logger.Debug("function executed",
			slog.String("function", name),
			slog.String("conversation_id", env.ConversationID),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("err", err))
	}()
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, &ExecError{Function: name, Err: &panicError{p: p}, Panic: true}
		}
	}()

	res, err = h.Call(ctx, args, env)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && r.opts.timeout > 0 {
			return nil, &ExecError{Function: name, Err: ErrTimeout}
		}
		return nil, &ExecError{Function: name, Err: err}
	}
	return res, nil
}
