package constants

// Provider identifiers accepted by the model factory.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderDeepSeek   = "deepseek"
	ProviderQwen       = "qwen"
	ProviderVolcengine = "volcengine"
	ProviderOllama     = "ollama"
	ProviderZhipu      = "zhipu"
)

// Default OpenAI-compatible endpoints for providers that speak the OpenAI wire format.
const (
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
	QwenBaseURL       = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	VolcengineBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	ZhipuBaseURL      = "https://open.bigmodel.cn/api/paas/v4"
	OllamaBaseURL     = "http://localhost:11434"
)
