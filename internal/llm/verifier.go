package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/verdict"
)

// ErrDisabled is returned when no provider is configured
var ErrDisabled = errors.New("LLM provider not configured")

// Verifier turns a claim and its source into a parsed verdict
type Verifier struct {
	provider Provider
	config   Config
}

// NewVerifier creates a verifier from configuration; an empty provider
// yields a disabled verifier
func NewVerifier(config Config) (*Verifier, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Verifier{provider: provider, config: config}, nil
}

// NewVerifierWithProvider wraps an existing provider
func NewVerifierWithProvider(provider Provider, config Config) *Verifier {
	return &Verifier{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (v *Verifier) IsEnabled() bool {
	return v != nil && v.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (v *Verifier) ProviderName() string {
	if !v.IsEnabled() {
		return ""
	}
	return v.provider.Name()
}

// Model returns the configured model name
func (v *Verifier) Model() string {
	if v == nil {
		return ""
	}
	return v.config.Model
}

// IsAvailable checks the provider
func (v *Verifier) IsAvailable(ctx context.Context) bool {
	return v.IsEnabled() && v.provider.IsAvailable(ctx)
}

// Verification is the outcome of one model call
type Verification struct {
	Response   *verdict.Response
	Raw        string
	Model      string
	TokensUsed int
	Latency    time.Duration
}

// Prompts returns the system and user prompt for an input
func (v *Verifier) Prompts(in PromptInput) (string, string) {
	system := v.config.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return system, BuildUserPrompt(in, v.config.MaxSourceChars)
}

// Check sends one claim/source pair to the model and parses the answer.
// The Verification is returned even when parsing fails; its verdict is then
// Error and the error wraps verdict.ErrUnparseableResponse.
func (v *Verifier) Check(ctx context.Context, in PromptInput) (*Verification, error) {
	if !v.IsEnabled() {
		return nil, ErrDisabled
	}

	system, user := v.Prompts(in)

	start := time.Now()
	resp, err := v.provider.Verify(ctx, VerifyRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        v.config.Model,
		MaxTokens:    v.config.MaxTokens,
	})
	latency := time.Since(start)

	if err != nil {
		return &Verification{
			Response: &verdict.Response{Verdict: model.VerdictError},
			Model:    v.config.Model,
			Latency:  latency,
		}, fmt.Errorf("%s verify: %w", v.provider.Name(), err)
	}

	result := &Verification{
		Raw:        resp.Text,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		Latency:    latency,
	}
	if result.Model == "" {
		result.Model = v.config.Model
	}

	parsed, err := verdict.ParseResponse(resp.Text)
	result.Response = parsed
	if err != nil {
		return result, fmt.Errorf("parse %s response: %w", v.provider.Name(), err)
	}

	return result, nil
}
