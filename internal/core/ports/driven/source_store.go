package driven

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// SourceStore handles knowledge source persistence
type SourceStore interface {
	// Save creates or updates a source
	Save(ctx context.Context, source *domain.KnowledgeSource) error

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.KnowledgeSource, error)

	// GetBatch retrieves sources by ID; missing IDs are omitted
	GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeSource, error)

	// List retrieves all sources, newest first
	List(ctx context.Context) ([]*domain.KnowledgeSource, error)

	// Delete removes a source and its stored document
	Delete(ctx context.Context, id string) error

	// SaveDocument stores the plain text awaiting ingestion
	SaveDocument(ctx context.Context, doc *domain.SourceDocument) error

	// GetDocument retrieves the stored plain text of a source
	GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error)
}
