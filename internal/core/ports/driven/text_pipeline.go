package driven

import "github.com/Rikshjoeriks/sales-assistant/internal/core/domain"

// Chunker splits normalised document text into overlapping chunks.
// Empty text yields no chunks and no error.
type Chunker interface {
	Chunk(sourceID, text string) ([]domain.Chunk, error)
}

// ConceptExtractor derives concept drafts from a chunk. It is deterministic:
// the same chunk and source type always yield the same drafts.
type ConceptExtractor interface {
	Extract(chunk domain.Chunk, sourceType domain.SourceType) ([]domain.ConceptDraft, error)
}

// TextNormaliser prepares extracted document text for chunking
type TextNormaliser interface {
	Normalise(text string) string
}

// DraftFilter post-processes all drafts of a document before embedding
type DraftFilter interface {
	Process(drafts []domain.ConceptDraft) []domain.ConceptDraft
}
