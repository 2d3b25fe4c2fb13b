package driven

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// ContextStore persists sales contexts. Contexts are write-once.
type ContextStore interface {
	// Create stores a new context; an existing ID is an error
	Create(ctx context.Context, salesCtx *domain.SalesContext) error

	// Get retrieves a context by ID
	Get(ctx context.Context, id string) (*domain.SalesContext, error)
}

// RecommendationStore persists recommendations with their source references
type RecommendationStore interface {
	// Save writes the recommendation and all of its references atomically:
	// either everything is stored or nothing is.
	Save(ctx context.Context, rec *domain.SalesRecommendation) error

	// Get retrieves a recommendation with its references
	Get(ctx context.Context, id string) (*domain.SalesRecommendation, error)

	// ListByContext retrieves the recommendations generated for a context
	ListByContext(ctx context.Context, contextID string) ([]*domain.SalesRecommendation, error)
}
