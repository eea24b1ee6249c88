package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OllamaProvider verifies claims with local models served by Ollama
type OllamaProvider struct {
	client *jsonClient
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Only present once generation is done
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func decodeOllamaError(body []byte) (string, string, bool) {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == "" {
		return "", "", false
	}
	return "", apiErr.Error, true
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	return &OllamaProvider{
		// Long sources on local hardware need a generous default
		client: newJSONClient(config, "http://localhost:11434", 120*time.Second, nil, decodeOllamaError),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is running by listing local models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.client.ping(ctx, "/api/tags")
}

// Verify runs one claim check through /api/generate in JSON mode
func (p *OllamaProvider) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	model := p.config.model(req.Model, "")
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := ollamaRequest{
		Model:  model,
		Prompt: req.UserPrompt,
		System: req.SystemPrompt,
		Format: "json",
		Options: ollamaOptions{
			NumPredict: p.config.maxTokens(req.MaxTokens),
		},
	}

	var resp ollamaResponse
	if err := p.client.post(ctx, "/api/generate", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	text := strings.TrimSpace(resp.Response)

	// Some models report no counts; estimate at 4 characters per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(req.SystemPrompt) + len(req.UserPrompt) + len(text)) / 4
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = model
	}

	return &VerifyResponse{
		Text:       text,
		Model:      respModel,
		TokensUsed: tokensUsed,
	}, nil
}
