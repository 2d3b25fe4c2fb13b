package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
)

// apiError is the error envelope returned by OpenAI-compatible APIs
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// openAIClient holds what the embedding and completion adapters share.
type openAIClient struct {
	provider string
	apiKey   string
	baseURL  string
	client   *http.Client
}

func newOpenAIClient(provider domain.AIProvider, apiKey, baseURL string, timeout time.Duration) openAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
		if provider == domain.AIProviderOllama {
			baseURL = DefaultOllamaBaseURL
		}
	}
	return openAIClient{
		provider: string(provider),
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// postJSON sends reqBody to path and decodes a 200 response into out.
// Failures come back as *domain.ProviderError.
func (c *openAIClient) postJSON(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return c.permanent(0, "failed to marshal request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return c.permanent(0, "failed to create request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		// Connection failures and client timeouts are worth another try.
		return &domain.ProviderError{Provider: c.provider, Message: "request failed: " + err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error(), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Transient:  domain.IsTransientStatus(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return c.permanent(resp.StatusCode, "failed to parse response: "+err.Error())
	}
	return nil
}

// get issues a GET and discards a successful body.
func (c *openAIClient) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return c.permanent(0, "failed to create request: "+err.Error())
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: c.provider, Message: "ping failed: " + err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &domain.ProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Transient:  domain.IsTransientStatus(resp.StatusCode),
		}
	}
	return nil
}

func (c *openAIClient) permanent(status int, msg string) *domain.ProviderError {
	return &domain.ProviderError{Provider: c.provider, StatusCode: status, Message: msg}
}

func (c *openAIClient) close() {
	c.client.CloseIdleConnections()
}

// errorMessage extracts the API error message, falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
