package fcstream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thecxx/fcstream/constants"
)

// Message is a single conversational unit. Once appended to a Conversation
// it is treated as immutable.
type Message struct {
	// Role is one of user, assistant, system, function or tool.
	Role string `json:"role"`
	// Content is the textual content of the message.
	Content string `json:"content"`
	// Name is the function name for function/tool result messages.
	Name string `json:"name,omitempty"`
	// ToolCallID links a tool result to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls carries the calls an assistant message requested (tool_calls dialect).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// FunctionCall carries the call an assistant message requested (legacy dialect).
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	// Attributes holds free-form metadata that is persisted but never sent to a provider.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// UserMessage returns a user message with the given content.
func UserMessage(content string) Message {
	return Message{Role: constants.RoleUser, Content: content}
}

// AssistantMessage returns an assistant message with the given content.
func AssistantMessage(content string) Message {
	return Message{Role: constants.RoleAssistant, Content: content}
}

// SystemMessage returns a system message with the given content.
func SystemMessage(content string) Message {
	return Message{Role: constants.RoleSystem, Content: content}
}

// HasCall reports whether the message requests a function call in either dialect.
func (m Message) HasCall() bool {
	return len(m.ToolCalls) > 0 || (m.FunctionCall != nil && m.FunctionCall.Name != "")
}

var errMissingRole = errors.New("message has no role")

// EncodeMessage serializes a message into its persisted wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Role == "" {
		return nil, errMissingRole
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a persisted message. Messages written before tool call
// indexes were recorded get sequential indexes.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Role == "" {
		return Message{}, errMissingRole
	}
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].Type == "" {
			msg.ToolCalls[i].Type = constants.ToolTypeFunction
		}
		if i > 0 && msg.ToolCalls[i].Index == 0 {
			msg.ToolCalls[i].Index = i
		}
	}
	return msg, nil
}

// EncodeMessages serializes a message history.
func EncodeMessages(msgs []Message) ([]byte, error) {
	for _, msg := range msgs {
		if msg.Role == "" {
			return nil, errMissingRole
		}
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// DecodeMessages parses a message history written by EncodeMessages.
func DecodeMessages(data []byte) ([]Message, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := DecodeMessage(raw)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
