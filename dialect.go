package fcstream

import (
	"github.com/thecxx/fcstream/constants"
)

// Dialect is the wire-shape family a provider uses to declare and return
// function calls.
type Dialect int

const (
	// DialectLegacy uses the single function_call field and function role results.
	// It is the zero value so unmapped providers fall back to it.
	DialectLegacy Dialect = iota
	// DialectToolCalls uses the tool_calls array and tool role results.
	DialectToolCalls
)

func (d Dialect) String() string {
	if d == DialectToolCalls {
		return "tool_calls"
	}
	return "function_call"
}

// defaultCallID is used when a tool_calls provider omitted the call id.
const defaultCallID = "call_1"

// DefaultDialects maps every provider shipped with this module to its dialect.
func DefaultDialects() map[string]Dialect {
	return map[string]Dialect{
		constants.ProviderOpenAI:     DialectToolCalls,
		constants.ProviderAnthropic:  DialectToolCalls,
		constants.ProviderDeepSeek:   DialectToolCalls,
		constants.ProviderQwen:       DialectToolCalls,
		constants.ProviderVolcengine: DialectToolCalls,
	}
}

// SchemaSource supplies the function declarations offered to a model.
type SchemaSource interface {
	Declarations(provider, model string) []Tool
}

// Adapter normalizes function-call wire shapes across providers. It is
// resolved once at startup and is safe for concurrent use.
type Adapter struct {
	dialects map[string]Dialect
	schema   SchemaSource
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDialect maps provider to d, overriding the defaults.
func WithDialect(provider string, d Dialect) AdapterOption {
	return func(a *Adapter) { a.dialects[provider] = d }
}

// WithSchemaSource sets where function declarations come from.
func WithSchemaSource(src SchemaSource) AdapterOption {
	return func(a *Adapter) { a.schema = src }
}

// NewAdapter returns an Adapter using DefaultDialects plus opts.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{dialects: DefaultDialects()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dialect returns the dialect of provider. Unmapped providers use DialectLegacy.
func (a *Adapter) Dialect(provider string) Dialect {
	return a.dialects[provider]
}

// PrepareCallSchema returns the chat options that declare the available
// functions to provider/model. It has no side effects.
func (a *Adapter) PrepareCallSchema(provider, model string) []ChatOption {
	if a.schema == nil {
		return nil
	}
	decls := a.schema.Declarations(provider, model)
	if len(decls) == 0 {
		return nil
	}
	if a.Dialect(provider) == DialectToolCalls {
		return []ChatOption{WithTool(decls...)}
	}
	return []ChatOption{WithFunctions(decls...)}
}

// BuildToolMessage renders a function result into the message shape that
// dialect expects in history.
func BuildToolMessage(d Dialect, name, result, callID string) Message {
	if d == DialectToolCalls {
		if callID == "" {
			callID = defaultCallID
		}
		return Message{
			Role:       constants.RoleTool,
			Content:    result,
			Name:       name,
			ToolCallID: callID,
		}
	}
	return Message{
		Role:    constants.RoleFunction,
		Content: result,
		Name:    name,
	}
}

// BuildCallMessage renders the assistant message that requested inv, with
// content as its visible text.
func BuildCallMessage(d Dialect, inv Invocation, content string) Message {
	msg := Message{Role: constants.RoleAssistant, Content: content}
	if d == DialectToolCalls {
		id := inv.CallID
		if id == "" {
			id = defaultCallID
		}
		msg.ToolCalls = []ToolCall{{
			Index:    0,
			ID:       id,
			Type:     constants.ToolTypeFunction,
			Function: FunctionCall{Name: inv.Name, Arguments: inv.Arguments},
		}}
		return msg
	}
	msg.FunctionCall = &FunctionCall{Name: inv.Name, Arguments: inv.Arguments}
	return msg
}

// ExtractCall returns the first function call requested by a complete response.
func ExtractCall(resp Response) (Invocation, bool) {
	if resp == nil {
		return Invocation{}, false
	}
	return ExtractMessageCall(resp.Answer())
}

// ExtractMessageCall returns the first function call carried by msg in either dialect.
func ExtractMessageCall(msg Message) (Invocation, bool) {
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		return Invocation{Name: tc.Function.Name, Arguments: tc.Function.Arguments, CallID: tc.ID}, true
	}
	if fc := msg.FunctionCall; fc != nil && fc.Name != "" {
		return Invocation{Name: fc.Name, Arguments: fc.Arguments}, true
	}
	return Invocation{}, false
}

// ReplayableHistory returns msgs with call payloads that never received a
// result stripped, so an aborted turn does not poison later requests. The
// message text is kept; msgs itself is not modified.
func ReplayableHistory(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].Role != constants.RoleAssistant || !out[i].HasCall() {
			continue
		}
		var next *Message
		if i+1 < len(out) {
			next = &out[i+1]
		}
		if len(out[i].ToolCalls) > 0 && (next == nil || next.Role != constants.RoleTool) {
			out[i].ToolCalls = nil
		}
		if out[i].FunctionCall != nil && (next == nil || (next.Role != constants.RoleFunction && next.Role != constants.RoleTool)) {
			out[i].FunctionCall = nil
		}
	}
	return out
}
