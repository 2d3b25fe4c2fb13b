package driven

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// ConceptStore handles knowledge concept persistence.
// Stored concepts are not visible to retrieval until they are indexed.
type ConceptStore interface {
	// SaveBatch stores concepts in one transaction
	SaveBatch(ctx context.Context, concepts []*domain.KnowledgeConcept) error

	// GetBatch retrieves concepts by ID; missing IDs are omitted
	GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeConcept, error)

	// ListBySource retrieves the concepts of a source in creation order
	ListBySource(ctx context.Context, sourceID string) ([]*domain.KnowledgeConcept, error)

	// DeleteBatch removes concepts by ID
	DeleteBatch(ctx context.Context, ids []string) error

	// DeleteBySource removes every concept of a source
	DeleteBySource(ctx context.Context, sourceID string) error
}
