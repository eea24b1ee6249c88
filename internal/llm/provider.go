package llm

import (
	"context"
)

// Provider is a model backend able to judge one claim against one source
type Provider interface {
	Name() string

	// Verify sends the prompts and returns the model's unparsed answer
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)

	// IsAvailable reports whether the backend answers with the configured credentials
	IsAvailable(ctx context.Context) bool
}

// VerifyRequest carries the prompts for one check.
// Model and MaxTokens override the provider config when set.
type VerifyRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	MaxTokens    int
}

// VerifyResponse is the raw answer plus accounting
type VerifyResponse struct {
	Text       string
	Model      string // as reported by the backend
	TokensUsed int
}

// Config selects and configures a provider. An empty Provider disables
// verification.
type Config struct {
	Provider  string // openai, anthropic, ollama
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   int // seconds
	MaxTokens int

	// SystemPrompt replaces DefaultSystemPrompt when set
	SystemPrompt string
	// MaxSourceChars bounds the source text embedded in the user prompt
	MaxSourceChars int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const defaultMaxTokens = 1000

func (c Config) maxTokens(override int) int {
	switch {
	case override > 0:
		return override
	case c.MaxTokens > 0:
		return c.MaxTokens
	default:
		return defaultMaxTokens
	}
}

func (c Config) model(override, fallback string) string {
	switch {
	case override != "":
		return override
	case c.Model != "":
		return c.Model
	default:
		return fallback
	}
}
