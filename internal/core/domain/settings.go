package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama" // OpenAI-compatible, self-hosted
	AIProviderHash   AIProvider = "hash"   // deterministic local embeddings
)

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama, AIProviderHash:
		return false
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama, AIProviderHash:
		return true
	default:
		return false
	}
}

// EmbeddingStrategy selects how concept text becomes a vector
type EmbeddingStrategy string

const (
	// EmbeddingStrategyModel uses the configured model provider only
	EmbeddingStrategyModel EmbeddingStrategy = "model"
	// EmbeddingStrategyHash uses the deterministic hash embedder only
	EmbeddingStrategyHash EmbeddingStrategy = "hash"
	// EmbeddingStrategyModelWithFallback switches to hashing when the model is unavailable
	EmbeddingStrategyModelWithFallback EmbeddingStrategy = "model_with_fallback"
)

// IsValid returns true if this is a known strategy
func (s EmbeddingStrategy) IsValid() bool {
	switch s {
	case EmbeddingStrategyModel, EmbeddingStrategyHash, EmbeddingStrategyModelWithFallback:
		return true
	default:
		return false
	}
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Strategy   EmbeddingStrategy `json:"strategy"`
	Provider   AIProvider        `json:"provider"`
	Model      string            `json:"model"`
	Dimensions int               `json:"dimensions"`
	APIKey     string            `json:"-"` // Never serialize to JSON
	BaseURL    string            `json:"base_url,omitempty"`
}

// IsConfigured returns true if a model-backed provider can be built
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Validate checks the embedding settings
func (e *EmbeddingSettings) Validate() error {
	if !e.Strategy.IsValid() {
		return ErrInvalidProvider
	}
	if e.Provider != "" && !e.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if e.Dimensions <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// LLMSettings configures the completion provider
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
	Logprobs bool       `json:"logprobs,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" || l.Provider == AIProviderHash {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}
