package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Verify_Success(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: "  {\"verdict\": \"Supported\", \"confidence\": 90}  ",
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 321},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "gpt-4o-mini",
		Timeout:   5,
		MaxTokens: 400,
	})
	require.NoError(t, err)

	resp, err := provider.Verify(context.Background(), VerifyRequest{
		SystemPrompt: "system text",
		UserPrompt:   "user text",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"verdict": "Supported", "confidence": 90}`, resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 321, resp.TokensUsed)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "system text", got.Messages[0].Content)
	assert.Equal(t, "user text", got.Messages[1].Content)
	assert.Equal(t, 400, got.MaxTokens)
	assert.Nil(t, got.ResponseFormat)
}

func TestOpenAIProvider_Verify_JSONMode(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "{}"},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.Verify(context.Background(), VerifyRequest{SystemPrompt: DefaultSystemPrompt, UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, openai.GPT4oMini, resp.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestOpenAIProvider_Verify_ContentFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{FinishReason: openai.FinishReasonContentFilter}},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.Verify(context.Background(), VerifyRequest{UserPrompt: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content filter")
}

func TestOpenAIProvider_Verify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error": {"message": "Internal Server Error", "type": "server_error"}}`},
		{"rate limit", http.StatusTooManyRequests, `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`},
		{"malformed json", http.StatusOK, `{malformed json`},
		{"no choices", http.StatusOK, `{"id": "x", "choices": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
			require.NoError(t, err)

			_, err = provider.Verify(context.Background(), VerifyRequest{UserPrompt: "x"})
			assert.Error(t, err)
		})
	}
}

func TestOpenAIProvider_Verify_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	require.NoError(t, err)

	// The caller's deadline wins over the configured timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = provider.Verify(ctx, VerifyRequest{UserPrompt: "x"})
	assert.Error(t, err)
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	assert.True(t, provider.IsAvailable(context.Background()))

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.False(t, provider.IsAvailable(context.Background()))
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	assert.Error(t, err)
}
