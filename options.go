package fcstream

// ChatOption represents a functional option to configure a single chat request.
// Options are applied in order and only affect the specific call where they are passed.
type ChatOption func(*ChatOptions)

// ChatOptions holds per-request configuration used to build the provider request.
// Fields are intentionally unexported; use With* helpers to set them.
type ChatOptions struct {
	// prompt is the system prompt included at the beginning of the conversation.
	prompt string
	// tools is the list of function tools declared in the tool_calls style.
	tools []Tool
	// functions is the list of functions declared in the legacy function_call style.
	functions []Tool
	// maxTokens limits the maximum number of tokens generated in the response.
	maxTokens *int
	// temperature controls randomness; nil leaves it to server defaults.
	temperature *float64
	// topP controls nucleus sampling, keeping the top tokens with cumulative probability >= topP.
	topP *float64
}

// NewChatOptions applies opts in order and returns the resulting configuration.
func NewChatOptions(opts ...ChatOption) *ChatOptions {
	options := &ChatOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Tools returns the functions declared in the tool_calls style.
func (o *ChatOptions) Tools() []Tool { return o.tools }

// Functions returns the functions declared in the legacy function_call style.
func (o *ChatOptions) Functions() []Tool { return o.functions }

// Prompt returns the system prompt.
func (o *ChatOptions) Prompt() string { return o.prompt }

// WithSystemPrompt sets the system prompt for the current chat request.
func WithSystemPrompt(prompt string) ChatOption {
	return func(opts *ChatOptions) { opts.prompt = prompt }
}

// WithTool declares function tools the model may call (tool_calls style).
func WithTool(tools ...Tool) ChatOption {
	return func(opts *ChatOptions) { opts.tools = append(opts.tools, tools...) }
}

// WithFunctions declares functions using the legacy function_call style.
func WithFunctions(functions ...Tool) ChatOption {
	return func(opts *ChatOptions) { opts.functions = append(opts.functions, functions...) }
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) ChatOption {
	return func(opts *ChatOptions) { opts.maxTokens = &maxTokens }
}

// WithTemperature sets temperature for the current request; if not provided, server defaults apply.
func WithTemperature(temperature float64) ChatOption {
	return func(opts *ChatOptions) { opts.temperature = &temperature }
}

// WithTopP sets the Top-P (nucleus) sampling parameter.
func WithTopP(topP float64) ChatOption {
	return func(opts *ChatOptions) { opts.topP = &topP }
}
