package fcstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thecxx/fcstream/constants"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ollamaLLM is a Model backed by a local Ollama server through langchaingo.
// langchaingo reports calls only once generation ends, so streamed text is
// delivered first and the call, if any, arrives as the final delta.
type ollamaLLM struct {
	name   string
	client llms.Model
}

// NewOllamaLLM creates a Model for an Ollama-served model. An empty serverURL
// uses the local default.
func NewOllamaLLM(name, serverURL string) (Model, error) {
	opts := []ollama.Option{ollama.WithModel(name)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return &ollamaLLM{name: name, client: client}, nil
}

// NewLangchainLLM serves an arbitrary langchaingo model in the Ollama role.
func NewLangchainLLM(name string, client llms.Model) Model {
	return &ollamaLLM{name: name, client: client}
}

// Name returns the model identifier string.
func (o *ollamaLLM) Name() string {
	return o.name
}

// Provider returns the provider identifier.
func (o *ollamaLLM) Provider() string {
	return constants.ProviderOllama
}

// ChatCompletion performs a blocking chat completion request.
func (o *ollamaLLM) ChatCompletion(ctx context.Context, messages []Message, opts ...ChatOption) (resp Response, err error) {
	start := time.Now()
	out, err := o.client.GenerateContent(ctx, convertHistory(messages), o.callOptions(NewChatOptions(opts...))...)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyChoices
	}

	choice := out.Choices[0]
	answer := Message{Role: constants.RoleAssistant, Content: choice.Content}
	if fc := choiceCall(choice); fc != nil {
		answer.FunctionCall = fc
	}
	meta := Meta{
		Provider:   constants.ProviderOllama,
		Model:      o.name,
		StopReason: choice.StopReason,
	}
	return NewResponse(answer, meta, time.Since(start)), nil
}

// ChatCompletionStream starts generation in a goroutine and pumps its
// streamed text through a channel.
func (o *ollamaLLM) ChatCompletionStream(ctx context.Context, messages []Message, opts ...ChatOption) (stream Stream, err error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &pumpStream{ch: make(chan Delta), cancel: cancel}

	send := func(d Delta) error {
		select {
		case s.ch <- d:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	callOpts := o.callOptions(NewChatOptions(opts...))
	callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return send(Delta{Content: string(chunk)})
	}))
	history := convertHistory(messages)

	go func() {
		defer close(s.ch)
		out, err := o.client.GenerateContent(ctx, history, callOpts...)
		if err != nil {
			s.err = err
			return
		}
		if len(out.Choices) == 0 {
			s.err = ErrEmptyChoices
			return
		}
		if fc := choiceCall(out.Choices[0]); fc != nil {
			_ = send(Delta{FunctionCall: fc, FinishReason: constants.FinishReasonFunctionCall})
		}
	}()
	return s, nil
}

// choiceCall folds the first call of a langchaingo choice into a legacy FunctionCall.
func choiceCall(choice *llms.ContentChoice) *FunctionCall {
	if choice.FuncCall != nil && choice.FuncCall.Name != "" {
		return &FunctionCall{Name: choice.FuncCall.Name, Arguments: choice.FuncCall.Arguments}
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name != "" {
			return &FunctionCall{Name: tc.FunctionCall.Name, Arguments: tc.FunctionCall.Arguments}
		}
	}
	return nil
}

func (o *ollamaLLM) callOptions(opts *ChatOptions) []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithModel(o.name)}
	if opts.maxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*opts.maxTokens))
	}
	if opts.temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*opts.temperature))
	}
	if opts.topP != nil {
		callOpts = append(callOpts, llms.WithTopP(*opts.topP))
	}

	var tools []llms.Tool
	for _, tool := range append(append([]Tool(nil), opts.tools...), opts.functions...) {
		def := FunctionDefinitionOf(tool)
		if def == nil {
			continue
		}
		tools = append(tools, llms.Tool{
			Type: constants.ToolTypeFunction,
			Function: &llms.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	if len(tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(tools))
	}
	return callOpts
}

// convertHistory maps messages onto langchaingo message contents.
func convertHistory(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case constants.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case constants.RoleAssistant:
			var parts []llms.ContentPart
			if m.Content != "" {
				parts = append(parts, llms.TextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:           tc.ID,
					Type:         constants.ToolTypeFunction,
					FunctionCall: &llms.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
				})
			}
			if fc := m.FunctionCall; fc != nil {
				parts = append(parts, llms.ToolCall{
					ID:           defaultCallID,
					Type:         constants.ToolTypeFunction,
					FunctionCall: &llms.FunctionCall{Name: fc.Name, Arguments: fc.Arguments},
				})
			}
			// an empty assistant turn is rejected
			if len(parts) == 0 {
				parts = append(parts, llms.TextPart(" "))
			}
			out = append(out, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case constants.RoleTool, constants.RoleFunction:
			id := m.ToolCallID
			if id == "" {
				id = defaultCallID
			}
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: id,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return out
}

// pumpStream is a Stream fed by a producer goroutine.
type pumpStream struct {
	ch     chan Delta
	cancel context.CancelFunc
	once   sync.Once
	cur    Delta
	// err is written before ch is closed
	err    error
	closed bool
}

// Next implements Stream.
func (s *pumpStream) Next() bool {
	if s.closed {
		return false
	}
	d, ok := <-s.ch
	if !ok {
		return false
	}
	s.cur = d
	return true
}

// Current implements Stream.
func (s *pumpStream) Current() Delta {
	return s.cur
}

// Err implements Stream. It is only meaningful once Next returned false.
func (s *pumpStream) Err() error {
	if s.closed && errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

// Close implements Stream. It waits for the producer to exit.
func (s *pumpStream) Close() error {
	s.once.Do(func() {
		s.closed = true
		s.cancel()
		for range s.ch {
		}
	})
	return nil
}
