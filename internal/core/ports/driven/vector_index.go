package driven

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// VectorIndex stores one vector per concept and answers nearest-neighbour
// queries by cosine similarity. Implementations must never expose a partially
// applied batch: each call below is atomic with respect to Search.
type VectorIndex interface {
	// Upsert inserts or replaces entries. A replaced entry keeps its original
	// insertion sequence.
	Upsert(ctx context.Context, entries []domain.VectorEntry) error

	// Delete removes entries by concept ID. Unknown IDs are ignored.
	Delete(ctx context.Context, conceptIDs []string) error

	// ReplaceSource swaps every entry of a source for the given set in one step.
	ReplaceSource(ctx context.Context, sourceID string, entries []domain.VectorEntry) error

	// DeleteSource removes every entry of a source.
	DeleteSource(ctx context.Context, sourceID string) error

	// Search returns up to topK matches scoring at least minScore, sorted by
	// score descending and then by insertion sequence. topK <= 0 returns an
	// empty result.
	Search(ctx context.Context, query []float32, topK int, minScore float64) ([]domain.VectorMatch, error)

	// Count returns the number of indexed entries
	Count(ctx context.Context) (int, error)

	// Dimensions returns the index-wide vector dimension
	Dimensions() int
}
