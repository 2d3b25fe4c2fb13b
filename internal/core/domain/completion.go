package domain

// TokenUsage reports prompt and completion token counts
type TokenUsage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// Completion is the generated text returned by a completion provider
type Completion struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
	Model string     `json:"model"`

	// Confidence is set when the provider returns metadata that allows one,
	// such as token log probabilities.
	Confidence *float64 `json:"confidence,omitempty"`

	// Attempts counts provider calls made, including the successful one
	Attempts int `json:"attempts"`
}

// CompletionOptions tune a single completion request
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// DefaultCompletionOptions returns sensible defaults
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{
		Temperature: 0.3,
		MaxTokens:   600,
	}
}
