package fcstream

// Tool describes a callable capability the model may invoke during generation.
// For function calling, Type is "function" and Definition is a *FunctionDefinition.
type Tool interface {
	// Type returns the category or kind of the tool.
	Type() string

	// Definition returns the configuration/metadata of the tool.
	Definition() any
}

// ToolCall is a single tool invocation in the tool_calls style. In a streamed
// Delta it is a fragment: Index identifies the call, ID and Function.Name are
// only present on the first fragment and Function.Arguments carries the next
// slice of argument text.
type ToolCall struct {
	// Index is the zero-based position of this call among the calls of one answer.
	Index int `json:"index"`
	// ID is the provider-assigned call identifier.
	ID string `json:"id,omitempty"`
	// Type is the call category, always "function" today.
	Type string `json:"type,omitempty"`
	// Function holds the function name and serialized arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall contains the name and serialized arguments of a function-style call.
// It is also the legacy function_call payload.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Invocation is the canonical, provider-independent request to run a function.
type Invocation struct {
	// Name of the function to run.
	Name string `json:"name"`
	// Arguments is the raw JSON argument text as the model produced it.
	Arguments string `json:"arguments"`
	// CallID is the opaque call token; empty for the legacy dialect.
	CallID string `json:"call_id,omitempty"`
}

type tool struct {
	type_      string
	definition any
}

// Type implements Tool.
func (t *tool) Type() string {
	return t.type_
}

// Definition implements Tool.
func (t *tool) Definition() any {
	return t.definition
}
