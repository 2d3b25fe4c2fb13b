package driving

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// SynthesisService turns a sales context into a persisted recommendation
type SynthesisService interface {
	// Synthesize retrieves concepts for the context, generates a
	// recommendation and stores it with its source references
	Synthesize(ctx context.Context, salesCtx *domain.SalesContext, prefs domain.OutputPreferences) (*domain.SalesRecommendation, error)

	// Get retrieves a stored recommendation with its references
	Get(ctx context.Context, id string) (*domain.SalesRecommendation, error)
}
