package fcstream

import (
	"context"
)

// Stream is a lazily consumed sequence of provider deltas produced by one
// streaming completion. It is finite and cannot be restarted.
type Stream interface {
	// Next advances to the next delta. It returns false when the stream is
	// exhausted or failed; check Err afterwards.
	Next() bool

	// Current returns the delta Next advanced to.
	Current() Delta

	// Err returns the transport error that stopped the stream, if any.
	Err() error

	// Close abandons the stream. It is safe to call more than once and
	// releases the underlying connection without draining it.
	Close() error
}

// Model defines the abstract interface for an LLM engine.
type Model interface {
	// Name returns the model identifier sent to the provider.
	Name() string

	// Provider returns the provider identifier this model is bound to.
	Provider() string

	// ChatCompletion performs a blocking chat completion request.
	// It takes a context for cancellation, a slice of messages as conversation history,
	// and optional ChatOption for configuration (e.g., tools, temperature).
	// It returns the final aggregated Response and any execution error.
	ChatCompletion(ctx context.Context, messages []Message, opts ...ChatOption) (resp Response, err error)

	// ChatCompletionStream opens a streaming chat completion request.
	// Deltas are pulled from the returned Stream; the caller must Close it.
	ChatCompletionStream(ctx context.Context, messages []Message, opts ...ChatOption) (stream Stream, err error)
}

// ModelSource resolves a Model for a provider/model pair.
type ModelSource interface {
	Model(provider, name string) (Model, error)
}
