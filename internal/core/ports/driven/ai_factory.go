package driven

import "github.com/Rikshjoeriks/sales-assistant/internal/core/domain"

// AIServiceFactory builds providers from runtime settings. It lets startup
// and the readiness re-check create fresh clients without knowing adapters.
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateCompletionService returns nil, nil when no completion provider
	// is configured
	CreateCompletionService(settings *domain.LLMSettings) (CompletionService, error)
}
