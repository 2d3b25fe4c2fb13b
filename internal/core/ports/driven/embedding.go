package driven

import "context"

// EmbeddingService turns concept text and retrieval queries into vectors.
// One index holds vectors of a single dimension, so every service used
// against it must report the same Dimensions.
type EmbeddingService interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	Dimensions() int
	// Model names the provider model or local strategy, e.g. "hash-fnv"
	Model() string

	HealthCheck(ctx context.Context) error
	Close() error
}
