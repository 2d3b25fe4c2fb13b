package driving

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// SubmitSourceRequest asks for a source to be (re)ingested from plain text.
// An empty SourceID creates a new source.
type SubmitSourceRequest struct {
	SourceID string            `json:"source_id,omitempty"`
	Title    string            `json:"title"`
	Author   string            `json:"author,omitempty"`
	Type     domain.SourceType `json:"type"`
	Locator  string            `json:"locator,omitempty"`
	Text     string            `json:"text"`
}

// IngestionService accepts documents for asynchronous ingestion and reports
// their processing status
type IngestionService interface {
	// Submit stores the text, marks the source queued and schedules ingestion
	Submit(ctx context.Context, req SubmitSourceRequest) (*domain.KnowledgeSource, error)

	// Requeue schedules another ingestion of the stored document
	Requeue(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error)

	// Ingest runs the pipeline for a queued source; called by workers
	Ingest(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error)

	// Get retrieves a source and its processing status
	Get(ctx context.Context, id string) (*domain.KnowledgeSource, error)

	// List retrieves all sources
	List(ctx context.Context) ([]*domain.KnowledgeSource, error)

	// Concepts lists the current concepts of a source
	Concepts(ctx context.Context, sourceID string) ([]*domain.KnowledgeConcept, error)

	// Delete removes a source with its concepts and index entries
	Delete(ctx context.Context, id string) error
}
