package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the application config to llm.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Timeout:        cfg.LLM.Timeout,
		MaxTokens:      cfg.LLM.MaxTokens,
		SystemPrompt:   cfg.Prompt.SystemPrompt,
		MaxSourceChars: cfg.Prompt.MaxSourceChars,
		HTTPProxy:      cfg.HTTP.HTTPProxy,
		HTTPSProxy:     cfg.HTTP.HTTPSProxy,
		NoProxy:        cfg.HTTP.NoProxy,
	}
}

// ApplyEnv fills the API key and base URL from the provider's environment
// variables when the config leaves them empty
func ApplyEnv(config Config) Config {
	switch strings.ToLower(config.Provider) {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
	return config
}
