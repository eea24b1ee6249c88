package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider verifies claims with Claude models over the Messages API
type AnthropicProvider struct {
	client *jsonClient
	config Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// decodeAnthropicError reads {"type": "error", "error": {"type", "message"}}
func decodeAnthropicError(body []byte) (string, string, bool) {
	var apiErr struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return "", "", false
	}
	return apiErr.Error.Type, apiErr.Error.Message, true
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	headers := map[string]string{
		"x-api-key":         config.APIKey,
		"anthropic-version": anthropicVersion,
	}
	return &AnthropicProvider{
		client: newJSONClient(config, "https://api.anthropic.com", 60*time.Second, headers, decodeAnthropicError),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks the key by listing models
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.client.ping(ctx, "/v1/models")
}

// Verify runs one claim check through the Messages API
func (p *AnthropicProvider) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	apiReq := anthropicRequest{
		Model:     p.config.model(req.Model, anthropicDefaultModel),
		MaxTokens: p.config.maxTokens(req.MaxTokens),
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
	}

	var resp anthropicResponse
	if err := p.client.post(ctx, "/v1/messages", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	// Only text blocks carry the answer
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no content in Anthropic response (stop reason %q)", resp.StopReason)
	}

	return &VerifyResponse{
		Text:       strings.TrimSpace(text.String()),
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}
