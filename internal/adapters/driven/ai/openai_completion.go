package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Ensure OpenAICompletion implements CompletionService
var _ driven.CompletionService = (*OpenAICompletion)(nil)

// Default configuration values.
const (
	DefaultCompletionModel   = "gpt-4o-mini"
	DefaultCompletionTimeout = 120 * time.Second
)

// OpenAICompletion calls an OpenAI-compatible /chat/completions endpoint
// once per Complete. Retries belong to the caller.
type OpenAICompletion struct {
	openAIClient
	model    string
	logprobs bool
}

// NewOpenAICompletion creates a completion service from settings.
func NewOpenAICompletion(settings *domain.LLMSettings) (*OpenAICompletion, error) {
	if settings.Provider.RequiresAPIKey() && settings.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is required", domain.ErrInvalidInput, settings.Provider)
	}
	model := settings.Model
	if model == "" {
		model = DefaultCompletionModel
	}
	return &OpenAICompletion{
		openAIClient: newOpenAIClient(settings.Provider, settings.APIKey, settings.BaseURL, DefaultCompletionTimeout),
		model:        model,
		logprobs:     settings.Logprobs,
	}, nil
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Logprobs    bool                `json:"logprobs,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Logprobs     *struct {
			Content []struct {
				Token   string  `json:"token"`
				Logprob float64 `json:"logprob"`
			} `json:"content"`
		} `json:"logprobs"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete generates text for the prompt
func (c *OpenAICompletion) Complete(ctx context.Context, prompt *domain.Prompt, opts domain.CompletionOptions) (*domain.Completion, error) {
	var messages []chatCompletionMsg
	if prompt.System != "" {
		messages = append(messages, chatCompletionMsg{Role: "system", Content: prompt.System})
	}
	messages = append(messages, chatCompletionMsg{Role: "user", Content: prompt.User})

	req := chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Logprobs: c.logprobs,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	var resp chatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, c.permanent(200, "no response choices returned")
	}
	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		// An empty generation is usually a provider hiccup.
		return nil, &domain.ProviderError{Provider: c.provider, StatusCode: 200, Message: "empty completion", Transient: true}
	}

	completion := &domain.Completion{
		Text:  text,
		Model: c.model,
	}
	if resp.Model != "" {
		completion.Model = resp.Model
	}
	if resp.Usage != nil {
		completion.Usage = domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if choice.Logprobs != nil && len(choice.Logprobs.Content) > 0 {
		var sum float64
		for _, tok := range choice.Logprobs.Content {
			sum += tok.Logprob
		}
		conf := math.Exp(sum / float64(len(choice.Logprobs.Content)))
		conf = math.Round(conf*100) / 100
		completion.Confidence = &conf
	}

	return completion, nil
}

// Model returns the model name being used
func (c *OpenAICompletion) Model() string {
	return c.model
}

// Ping checks the /models endpoint, which validates the key without inference.
func (c *OpenAICompletion) Ping(ctx context.Context) error {
	return c.get(ctx, "/models")
}

// Close releases resources.
func (c *OpenAICompletion) Close() error {
	c.close()
	return nil
}
