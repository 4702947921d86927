// Package event defines the protocol events of a streaming turn and their
// transport framing.
package event

// Type enumerates protocol event types.
type Type string

const (
	TypeStreamStart          Type = "stream_start"
	TypeContent              Type = "content"
	TypeFunctionCallDetected Type = "function_call_detected"
	TypeExecutingFunction    Type = "executing_function"
	TypeGeneratingQuery      Type = "generating_query"
	TypeQueryGenerated       Type = "query_generated"
	TypeFunctionExecuted     Type = "function_executed"
	TypeGeneratingResponse   Type = "generating_response"
	TypeContentDirect        Type = "content_direct"
	TypeDone                 Type = "done"
	TypeError                Type = "error"
)

// Terminal reports whether t ends a turn.
func (t Type) Terminal() bool {
	return t == TypeDone || t == TypeError
}

// Event is the envelope sent to the client.
type Event struct {
	Type           Type   `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        any    `json:"content,omitempty"`
}

// FunctionCallDetected is the content of a function_call_detected event.
type FunctionCallDetected struct {
	FunctionType string `json:"function_type"`
	Description  string `json:"description"`
}

// FunctionExecuted is the content of a function_executed event. Result is
// the JSON text of the function result.
type FunctionExecuted struct {
	FunctionType string `json:"function_type"`
	Result       string `json:"result"`
}

// ContentDirect is the content of a content_direct event.
type ContentDirect struct {
	FunctionType string `json:"function_type"`
	Status       string `json:"status"`
}
