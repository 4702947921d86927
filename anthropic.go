package fcstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/thecxx/fcstream/constants"
)

// defaultAnthropicMaxTokens is sent when the caller did not set WithMaxTokens;
// the Messages API requires the field.
const defaultAnthropicMaxTokens = 4096

type anthropicLLM struct {
	name   string
	client *anthropic.Client
}

// NewAnthropicLLM creates a new Model implementation for Anthropic's API.
func NewAnthropicLLM(name string, client *anthropic.Client) Model {
	return &anthropicLLM{name: name, client: client}
}

// NewAnthropicLLMWithAPIKey creates a new Model implementation with an API key.
func NewAnthropicLLMWithAPIKey(name, apiKey, baseURL string) Model {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicLLM{name: name, client: &client}
}

// Name returns the model identifier string.
func (a *anthropicLLM) Name() string {
	return a.name
}

// Provider returns the provider identifier.
func (a *anthropicLLM) Provider() string {
	return constants.ProviderAnthropic
}

// ChatCompletion performs a blocking chat completion request.
// It builds the request from messages and options, executes the call,
// and returns the final assistant message together with any tool-calls.
func (a *anthropicLLM) ChatCompletion(ctx context.Context, messages []Message, opts ...ChatOption) (resp Response, err error) {
	req := a.makeRequest(NewChatOptions(opts...), messages)

	start := time.Now()
	chatResp, err := a.client.Messages.New(ctx, req)
	if err != nil {
		return nil, err
	}

	// Defensive: ensure we have at least one content block
	if len(chatResp.Content) <= 0 {
		return nil, ErrEmptyChoices
	}

	var (
		content strings.Builder
		answer  = Message{Role: constants.RoleAssistant}
	)
	for _, block := range chatResp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			argsJSON := []byte("{}")
			if len(b.Input) > 0 && string(b.Input) != "null" {
				argsJSON = b.Input
			}
			answer.ToolCalls = append(answer.ToolCalls, ToolCall{
				Index: len(answer.ToolCalls),
				ID:    b.ID,
				Type:  constants.ToolTypeFunction,
				Function: FunctionCall{
					Name:      b.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}
	answer.Content = content.String()

	meta := Meta{
		Provider:     constants.ProviderAnthropic,
		Model:        a.name,
		RequestID:    chatResp.ID,
		StopReason:   string(chatResp.StopReason),
		InputTokens:  int(chatResp.Usage.InputTokens),
		OutputTokens: int(chatResp.Usage.OutputTokens),
	}
	return NewResponse(answer, meta, time.Since(start)), nil
}

// ChatCompletionStream opens a streaming chat completion request.
// tool_use blocks surface as ToolCall fragments keyed by content block index.
func (a *anthropicLLM) ChatCompletionStream(ctx context.Context, messages []Message, opts ...ChatOption) (stream Stream, err error) {
	req := a.makeRequest(NewChatOptions(opts...), messages)

	ctx, cancel := context.WithCancel(ctx)
	raw := a.client.Messages.NewStreaming(ctx, req)
	if err := raw.Err(); err != nil {
		cancel()
		return nil, err
	}
	return &anthropicStream{stream: raw, cancel: cancel}, nil
}

// anthropicStream maps Anthropic stream events onto Deltas.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	cancel context.CancelFunc
	once   sync.Once
	closed bool
	cur    Delta
	// toolArgs records, per open tool_use block, whether input JSON arrived.
	toolArgs map[int64]bool
}

// Next implements Stream.
func (s *anthropicStream) Next() bool {
	if s.closed {
		return false
	}
	for s.stream.Next() {
		event := s.stream.Current()

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if cb, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				if s.toolArgs == nil {
					s.toolArgs = make(map[int64]bool)
				}
				s.toolArgs[ev.Index] = false
				s.cur = Delta{ToolCalls: []ToolCall{{
					Index:    int(ev.Index),
					ID:       cb.ID,
					Type:     constants.ToolTypeFunction,
					Function: FunctionCall{Name: cb.Name},
				}}}
				return true
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				s.cur = Delta{Content: d.Text}
				return true
			case anthropic.InputJSONDelta:
				if d.PartialJSON == "" {
					continue
				}
				if _, ok := s.toolArgs[ev.Index]; ok {
					s.toolArgs[ev.Index] = true
				}
				s.cur = Delta{ToolCalls: []ToolCall{{
					Index:    int(ev.Index),
					Function: FunctionCall{Arguments: d.PartialJSON},
				}}}
				return true
			}
		case anthropic.ContentBlockStopEvent:
			// A tool without parameters streams no input at all.
			seen, ok := s.toolArgs[ev.Index]
			delete(s.toolArgs, ev.Index)
			if ok && !seen {
				s.cur = Delta{ToolCalls: []ToolCall{{
					Index:    int(ev.Index),
					Function: FunctionCall{Arguments: "{}"},
				}}}
				return true
			}
		case anthropic.MessageDeltaEvent:
			if ev.Delta.StopReason != "" {
				s.cur = Delta{FinishReason: string(ev.Delta.StopReason)}
				return true
			}
		}
	}
	return false
}

// Current implements Stream.
func (s *anthropicStream) Current() Delta {
	return s.cur
}

// Err implements Stream.
func (s *anthropicStream) Err() error {
	err := s.stream.Err()
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if s.closed && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close implements Stream.
func (s *anthropicStream) Close() (err error) {
	s.once.Do(func() {
		s.closed = true
		s.cancel()
		err = s.stream.Close()
	})
	return err
}

// makeRequest builds an Anthropic MessageNewParams from ChatOptions and Message list.
// System messages are lifted into the system prompt; tool and function results
// become user turns.
func (a *anthropicLLM) makeRequest(opts *ChatOptions, messages []Message) (req anthropic.MessageNewParams) {
	req.Model = anthropic.Model(a.name)
	req.MaxTokens = defaultAnthropicMaxTokens
	if opts.maxTokens != nil {
		req.MaxTokens = int64(*opts.maxTokens)
	}
	if opts.temperature != nil {
		req.Temperature = anthropic.Float(*opts.temperature)
	}
	if opts.topP != nil {
		req.TopP = anthropic.Float(*opts.topP)
	}

	// Set system prompt
	if opts.prompt != "" {
		req.System = append(req.System, anthropic.TextBlockParam{Text: opts.prompt})
	}

	for _, message := range messages {
		if message.Role == constants.RoleSystem {
			req.System = append(req.System, anthropic.TextBlockParam{Text: message.Content})
			continue
		}
		req.Messages = append(req.Messages, toMessageParam(message))
	}

	// Both declaration styles map onto Anthropic tools.
	for _, tool := range append(append([]Tool(nil), opts.tools...), opts.functions...) {
		def := FunctionDefinitionOf(tool)
		if def == nil {
			continue
		}
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{},
			},
		}

		// JSON round-trip from jsonschema.Definition
		if data, err := json.Marshal(def.Parameters); err == nil {
			var inputSchema anthropic.ToolInputSchemaParam
			if err := json.Unmarshal(data, &inputSchema); err == nil && inputSchema.Properties != nil {
				toolParam.InputSchema = inputSchema
			}
		}
		req.Tools = append(req.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return req
}

// toMessageParam converts a Message to Anthropic's MessageParam.
func toMessageParam(m Message) anthropic.MessageParam {
	switch m.Role {
	case constants.RoleTool:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
	case constants.RoleAssistant:
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]any{}
			}
			param := anthropic.ToolUseBlockParam{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: input,
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &param})
		}
		if len(blocks) == 0 {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(""))
		}
		return anthropic.NewAssistantMessage(blocks...)
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
}
