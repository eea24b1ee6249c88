package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider verifies claims with OpenAI chat models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the API key can list models
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Verify runs one claim check through the Chat Completions API
func (p *OpenAIProvider) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	model := p.config.model(req.Model, openai.GPT4oMini)

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens: p.config.maxTokens(req.MaxTokens),
	}

	// JSON mode is rejected unless the prompt itself asks for JSON
	if strings.Contains(strings.ToLower(req.SystemPrompt+req.UserPrompt), "json") {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return nil, fmt.Errorf("OpenAI response withheld by content filter")
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = model
	}

	return &VerifyResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      respModel,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
