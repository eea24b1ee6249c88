package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/util"
)

// APIError is a non-200 answer from a model API
type APIError struct {
	StatusCode int
	Type       string // Provider error type, when the body carried one
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (%d): %s - %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// errorDecoder extracts the provider's error type and message from a body
type errorDecoder func(body []byte) (errType, message string, ok bool)

// jsonClient posts JSON to one model API
type jsonClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	decodeErr  errorDecoder
}

func newJSONClient(config Config, defaultBaseURL string, defaultTimeout time.Duration, headers map[string]string, decodeErr errorDecoder) *jsonClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &jsonClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		decodeErr: decodeErr,
	}
}

// post sends in as JSON to path and decodes a 200 answer into out
func (c *jsonClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		if c.decodeErr != nil {
			if errType, message, ok := c.decodeErr(respBody); ok {
				apiErr.Type, apiErr.Message = errType, message
			}
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// ping reports whether a GET on path answers 200
func (c *jsonClient) ping(ctx context.Context, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}
