package fcstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/thecxx/fcstream/constants"
)

// llm is a Model backed by any OpenAI-compatible chat completion endpoint.
type llm struct {
	provider string
	name     string
	client   *openai.Client
}

// NewLLM creates a Model for provider/name on top of an existing client.
func NewLLM(provider, name string, client *openai.Client) Model {
	return &llm{provider: provider, name: name, client: client}
}

// NewLLMWithAPIKey creates an OpenAI-compatible Model. An empty baseURL
// targets the OpenAI API.
func NewLLMWithAPIKey(provider, name, authToken, baseURL string) Model {
	config := openai.DefaultConfig(authToken)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return NewLLM(provider, name, openai.NewClientWithConfig(config))
}

// Name returns the model identifier string.
func (l *llm) Name() string {
	return l.name
}

// Provider returns the provider identifier.
func (l *llm) Provider() string {
	return l.provider
}

// ChatCompletion performs a blocking chat completion request.
// It builds the request from messages and options, executes the call,
// and returns the final assistant message together with any call it requested.
func (l *llm) ChatCompletion(ctx context.Context, messages []Message, opts ...ChatOption) (resp Response, err error) {
	req := l.makeRequest(NewChatOptions(opts...), messages)

	start := time.Now()
	chatResp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	// Defensive: ensure we have at least one choice
	if len(chatResp.Choices) <= 0 {
		return nil, ErrEmptyChoices
	}

	choice := chatResp.Choices[0]
	answer := Message{
		Role:    constants.RoleAssistant,
		Content: choice.Message.Content,
	}
	for i, call := range choice.Message.ToolCalls {
		index := i
		if call.Index != nil {
			index = *call.Index
		}
		answer.ToolCalls = append(answer.ToolCalls, ToolCall{
			Index: index,
			ID:    call.ID,
			Type:  constants.ToolTypeFunction,
			Function: FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	if fc := choice.Message.FunctionCall; fc != nil {
		answer.FunctionCall = &FunctionCall{Name: fc.Name, Arguments: fc.Arguments}
	}

	meta := Meta{
		Provider:     l.provider,
		Model:        chatResp.Model,
		RequestID:    chatResp.ID,
		StopReason:   string(choice.FinishReason),
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}

	return NewResponse(answer, meta, time.Since(start)), nil
}

// ChatCompletionStream opens a streaming chat completion request.
func (l *llm) ChatCompletionStream(ctx context.Context, messages []Message, opts ...ChatOption) (stream Stream, err error) {
	req := l.makeRequest(NewChatOptions(opts...), messages)
	req.Stream = true

	ctx, cancel := context.WithCancel(ctx)
	raw, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &openaiStream{stream: raw, cancel: cancel}, nil
}

// openaiStream adapts go-openai's Recv loop to Stream.
type openaiStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
	once   sync.Once
	cur    Delta
	err    error
	done   bool
}

// Next implements Stream.
func (s *openaiStream) Next() bool {
	for !s.done {
		resp, err := s.stream.Recv()
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}

		// Ignore empty payloads defensively
		if len(resp.Choices) <= 0 {
			continue
		}
		choice := resp.Choices[0]

		delta := Delta{
			Content:      choice.Delta.Content,
			FinishReason: string(choice.FinishReason),
		}
		for _, call := range choice.Delta.ToolCalls {
			index := 0
			if call.Index != nil {
				index = *call.Index
			}
			delta.ToolCalls = append(delta.ToolCalls, ToolCall{
				Index: index,
				ID:    call.ID,
				Type:  string(call.Type),
				Function: FunctionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		if fc := choice.Delta.FunctionCall; fc != nil {
			delta.FunctionCall = &FunctionCall{Name: fc.Name, Arguments: fc.Arguments}
		}
		s.cur = delta
		return true
	}
	return false
}

// Current implements Stream.
func (s *openaiStream) Current() Delta {
	return s.cur
}

// Err implements Stream.
func (s *openaiStream) Err() error {
	return s.err
}

// Close implements Stream.
func (s *openaiStream) Close() (err error) {
	s.once.Do(func() {
		s.done = true
		s.cancel()
		err = s.stream.Close()
	})
	return err
}

// makeRequest builds an OpenAI ChatCompletionRequest from ChatOptions and Message list.
// Functions declared with WithTool go out as tools, those declared with
// WithFunctions use the legacy functions field.
func (l *llm) makeRequest(opts *ChatOptions, messages []Message) (req openai.ChatCompletionRequest) {
	req.Model = l.name
	// Option: MaxTokens
	if opts.maxTokens != nil {
		req.MaxTokens = *opts.maxTokens
	}
	// Option: Temperature
	if opts.temperature != nil {
		req.Temperature = float32(*opts.temperature)
	}
	// Option: TopP
	if opts.topP != nil {
		req.TopP = float32(*opts.topP)
	}

	if opts.prompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.prompt,
		})
	}

	for _, message := range messages {
		req.Messages = append(req.Messages, convertMessage(message))
	}

	for _, tool := range opts.tools {
		if fn := openaiFunction(tool); fn != nil {
			req.Tools = append(req.Tools, openai.Tool{
				Type:     openai.ToolType(tool.Type()),
				Function: fn,
			})
		}
	}
	for _, tool := range opts.functions {
		if fn := openaiFunction(tool); fn != nil {
			req.Functions = append(req.Functions, *fn)
		}
	}

	return req
}

func openaiFunction(tool Tool) *openai.FunctionDefinition {
	def := FunctionDefinitionOf(tool)
	if def == nil {
		return nil
	}
	return &openai.FunctionDefinition{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  def.Parameters,
		Strict:      def.Strict,
	}
}

// convertMessage transforms a Message into OpenAI's ChatCompletionMessage.
func convertMessage(msg Message) openai.ChatCompletionMessage {
	raw := openai.ChatCompletionMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}

	for _, tcall := range msg.ToolCalls {
		index := tcall.Index
		raw.ToolCalls = append(raw.ToolCalls, openai.ToolCall{
			Index: &index,
			ID:    tcall.ID,
			Type:  openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tcall.Function.Name,
				Arguments: tcall.Function.Arguments,
			},
		})
	}
	if fc := msg.FunctionCall; fc != nil {
		raw.FunctionCall = &openai.FunctionCall{Name: fc.Name, Arguments: fc.Arguments}
	}

	return raw
}
