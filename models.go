package fcstream

import (
	"fmt"
	"sync"

	"github.com/thecxx/fcstream/constants"
)

// ProviderConfig holds the credentials and endpoint of one provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// Models builds and caches Model instances per provider/model pair.
type Models struct {
	mu        sync.Mutex
	providers map[string]ProviderConfig
	cache     map[string]Model
}

// NewModels returns a factory for the given provider configurations.
func NewModels(providers map[string]ProviderConfig) *Models {
	m := &Models{
		providers: make(map[string]ProviderConfig, len(providers)),
		cache:     make(map[string]Model),
	}
	for name, cfg := range providers {
		m.providers[name] = cfg
	}
	return m
}

// Register installs a prebuilt Model, replacing anything cached for its pair.
func (m *Models) Register(model Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[model.Provider()+"/"+model.Name()] = model
}

// Model implements ModelSource.
func (m *Models) Model(provider, name string) (Model, error) {
	key := provider + "/" + name

	m.mu.Lock()
	defer m.mu.Unlock()
	if model, ok := m.cache[key]; ok {
		return model, nil
	}

	model, err := m.build(provider, name)
	if err != nil {
		return nil, err
	}
	m.cache[key] = model
	return model, nil
}

func (m *Models) build(provider, name string) (Model, error) {
	cfg := m.providers[provider]

	switch provider {
	case constants.ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = constants.OllamaBaseURL
		}
		return NewOllamaLLM(name, baseURL)
	case constants.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
		}
		return NewAnthropicLLMWithAPIKey(name, cfg.APIKey, cfg.BaseURL), nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch provider {
		case constants.ProviderOpenAI:
		case constants.ProviderDeepSeek:
			baseURL = constants.DeepSeekBaseURL
		case constants.ProviderQwen:
			baseURL = constants.QwenBaseURL
		case constants.ProviderVolcengine:
			baseURL = constants.VolcengineBaseURL
		case constants.ProviderZhipu:
			baseURL = constants.ZhipuBaseURL
		default:
			return nil, fmt.Errorf("%q: %w", provider, ErrUnsupportedProvider)
		}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}
	return NewLLMWithAPIKey(provider, name, cfg.APIKey, baseURL), nil
}
