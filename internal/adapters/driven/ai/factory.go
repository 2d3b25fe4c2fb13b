package ai

import (
	"fmt"
	"log/slog"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new AI service factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateEmbeddingService builds the embedding strategy named in settings.
// The model strategies need a configured provider; hash needs only dimensions.
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: embedding settings are required", domain.ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	switch settings.Strategy {
	case domain.EmbeddingStrategyHash:
		return hashService(settings.Dimensions)

	case domain.EmbeddingStrategyModel, domain.EmbeddingStrategyModelWithFallback:
		model, err := f.createModelEmbedding(settings)
		if err != nil {
			return nil, err
		}
		if settings.Strategy == domain.EmbeddingStrategyModel {
			return model, nil
		}
		fallback, err := NewFallbackEmbedding(model, f.logger)
		if err != nil {
			return nil, err
		}
		return fallback, nil

	default:
		return nil, fmt.Errorf("%w: strategy %s", domain.ErrInvalidProvider, settings.Strategy)
	}
}

func (f *Factory) createModelEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidProvider, settings.Provider)
	}
	switch settings.Provider {
	case domain.AIProviderOpenAI, domain.AIProviderOllama:
		svc, err := NewOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.AIProviderHash:
		return hashService(settings.Dimensions)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateCompletionService creates a completion provider from settings.
// Returns nil, nil if settings are not configured.
func (f *Factory) CreateCompletionService(settings *domain.LLMSettings) (driven.CompletionService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI, domain.AIProviderOllama:
		svc, err := NewOpenAICompletion(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

func hashService(dimensions int) (driven.EmbeddingService, error) {
	svc, err := NewHashEmbedding(dimensions)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
