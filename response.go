package fcstream

import "time"

// Response wraps the final assistant message produced by a blocking completion.
type Response interface {
	// Answer returns the final assistant message, including any
	// tool_calls or function_call the provider returned.
	Answer() Message
	// Meta returns the request metadata (provider, model, request ID, etc.).
	Meta() Meta
	// Duration returns the total elapsed time of the request.
	Duration() time.Duration
}

// NewResponse builds a Response from its parts. Backends and test doubles use it.
func NewResponse(answer Message, meta Meta, duration time.Duration) Response {
	return &response{answer: answer, meta: meta, duration: duration}
}

// response is the concrete implementation of Response.
type response struct {
	// answer is the final assistant message constructed from the model output.
	answer Message
	// meta contains request metadata.
	meta Meta
	// duration captures the elapsed time from request start to completion.
	duration time.Duration
}

// Answer implements Response by returning the final assistant message.
func (resp *response) Answer() Message {
	return resp.answer
}

// Meta implements Response.
func (resp *response) Meta() Meta {
	return resp.meta
}

// Duration implements Response.
func (resp *response) Duration() time.Duration {
	return resp.duration
}

// Meta contains request metadata:
type Meta struct {
	// backend provider (e.g., openai, anthropic).
	Provider string
	// model name.
	Model string
	// request ID (useful for troubleshooting/auditing).
	RequestID string
	// reason the generation stopped (e.g., stop, tool_calls, tool_use).
	StopReason string
	// token accounting when the provider reports it.
	InputTokens  int
	OutputTokens int
}
