package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Ensure FallbackEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*FallbackEmbedding)(nil)

// FallbackEmbedding calls the primary model and switches to hash vectors for
// a call whose provider request fails. Both must produce the same dimension.
type FallbackEmbedding struct {
	primary  driven.EmbeddingService
	fallback *HashEmbedding
	logger   *slog.Logger
}

// NewFallbackEmbedding wraps primary with a hash fallback of the same dimension.
func NewFallbackEmbedding(primary driven.EmbeddingService, logger *slog.Logger) (*FallbackEmbedding, error) {
	fallback, err := NewHashEmbedding(primary.Dimensions())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackEmbedding{primary: primary, fallback: fallback, logger: logger}, nil
}

// Embed generates embeddings for multiple texts
func (f *FallbackEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.primary.Embed(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("embedding model unavailable, using hash fallback",
		"model", f.primary.Model(),
		"texts", len(texts),
		"error", err)
	return f.fallback.Embed(ctx, texts)
}

// EmbedQuery generates an embedding for a retrieval query
func (f *FallbackEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := f.primary.EmbedQuery(ctx, query)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("embedding model unavailable, using hash fallback for query",
		"model", f.primary.Model(),
		"error", err)
	return f.fallback.EmbedQuery(ctx, query)
}

// Dimensions returns the embedding dimension size
func (f *FallbackEmbedding) Dimensions() int {
	return f.primary.Dimensions()
}

// Model names both strategies
func (f *FallbackEmbedding) Model() string {
	return fmt.Sprintf("%s+%s", f.primary.Model(), f.fallback.Model())
}

// HealthCheck logs a failing primary and always succeeds
func (f *FallbackEmbedding) HealthCheck(ctx context.Context) error {
	if err := f.primary.HealthCheck(ctx); err != nil {
		f.logger.Warn("embedding model health check failed", "model", f.primary.Model(), "error", err)
	}
	return nil
}

// Close releases the primary's resources
func (f *FallbackEmbedding) Close() error {
	return f.primary.Close()
}
