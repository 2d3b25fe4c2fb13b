package driving

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// RetrievalService ranks concepts against a text or vector query
type RetrievalService interface {
	// Retrieve returns a bundle sorted by descending score. An empty query
	// returns an empty bundle.
	Retrieve(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalBundle, error)
}
