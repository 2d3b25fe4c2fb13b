package runtime

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Services holds the AI services used by ingestion and synthesis.
// Either service may be swapped while requests are in flight; callers fetch
// the current one per operation. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	// dimensions is fixed by the vector index; every embedding service
	// installed here must produce vectors of this size.
	dimensions int

	embeddingService  driven.EmbeddingService
	embeddingStrategy domain.EmbeddingStrategy
	completionService driven.CompletionService
}

// NewServices creates an empty registry bound to the index dimension
func NewServices(config *domain.RuntimeConfig, dimensions int) *Services {
	return &Services{
		config:     config,
		dimensions: dimensions,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// Dimensions returns the vector dimension required of embedding services
func (s *Services) Dimensions() int {
	return s.dimensions
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// CompletionService returns the current completion service (may be nil)
func (s *Services) CompletionService() driven.CompletionService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completionService
}

// SetEmbeddingService installs svc, closing the previous service.
// A service whose dimension differs from the index is rejected.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService, strategy domain.EmbeddingStrategy) error {
	if svc != nil && s.dimensions > 0 && svc.Dimensions() != s.dimensions {
		return goerr.Wrap(domain.ErrInvalidInput, "embedding dimension does not match index",
			goerr.V("expected", s.dimensions), goerr.V("actual", svc.Dimensions()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.embeddingStrategy = strategy
	s.config.SetEmbedding(svc != nil, strategy)
	return nil
}

// SetCompletionService installs svc, closing the previous service
func (s *Services) SetCompletionService(svc driven.CompletionService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completionService != nil && s.completionService != svc {
		_ = s.completionService.Close()
	}

	s.completionService = svc
	s.config.SetCompletionAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.completionService != nil {
		_ = s.completionService.Close()
		s.completionService = nil
	}

	s.config.SetEmbedding(false, "")
	s.config.SetCompletionAvailable(false)
	return nil
}

// ValidateAndSetEmbedding health-checks svc before installing it
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService, strategy domain.EmbeddingStrategy) error {
	if svc == nil {
		return s.SetEmbeddingService(nil, "")
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return goerr.Wrap(domain.ErrUnavailable, "embedding health check failed",
			goerr.V("model", svc.Model()), goerr.V("cause", err.Error()))
	}

	if err := s.SetEmbeddingService(svc, strategy); err != nil {
		_ = svc.Close()
		return err
	}
	return nil
}

// ValidateAndSetCompletion pings svc before installing it
func (s *Services) ValidateAndSetCompletion(ctx context.Context, svc driven.CompletionService) error {
	if svc == nil {
		s.SetCompletionService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return goerr.Wrap(domain.ErrUnavailable, "completion ping failed",
			goerr.V("model", svc.Model()), goerr.V("cause", err.Error()))
	}

	s.SetCompletionService(svc)
	return nil
}
