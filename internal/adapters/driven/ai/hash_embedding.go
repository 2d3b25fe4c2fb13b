package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Ensure HashEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashEmbedding)(nil)

// HashEmbeddingModel is the model name reported by HashEmbedding
const HashEmbeddingModel = "hash-fnv1a"

// HashEmbedding is a deterministic, offline embedding. Each content token is
// hashed into one of D buckets; bucket weights use sublinear term frequency
// and the vector is L2-normalised, so texts sharing key terms score high on
// cosine similarity. Empty text maps to the zero vector.
type HashEmbedding struct {
	dimensions int
}

// NewHashEmbedding creates a hash embedder producing vectors of size dimensions.
func NewHashEmbedding(dimensions int) (*HashEmbedding, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("hash embedding: dimensions must be positive, got %d", dimensions)
	}
	return &HashEmbedding{dimensions: dimensions}, nil
}

// Embed generates embeddings for multiple texts
func (h *HashEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a retrieval query
func (h *HashEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(query), nil
}

func (h *HashEmbedding) vector(text string) []float32 {
	counts := make(map[int]int)
	for _, tok := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		counts[int(hasher.Sum32()%uint32(h.dimensions))]++
	}

	vec := make([]float32, h.dimensions)
	if len(counts) == 0 {
		return vec
	}

	var norm float64
	for bucket, tf := range counts {
		w := 1 + math.Log(float64(tf))
		vec[bucket] = float32(w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// tokenize splits text into lower-cased letter/digit runs without stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Dimensions returns the embedding dimension size
func (h *HashEmbedding) Dimensions() int {
	return h.dimensions
}

// Model returns the strategy name
func (h *HashEmbedding) Model() string {
	return HashEmbeddingModel
}

// HealthCheck always succeeds; hashing has no external dependency
func (h *HashEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (h *HashEmbedding) Close() error {
	return nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"but": true, "by": true, "can": true, "do": true, "for": true, "from": true, "has": true,
	"have": true, "he": true, "her": true, "his": true, "how": true, "i": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true, "my": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "our": true, "she": true, "so": true,
	"that": true, "the": true, "their": true, "them": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "which": true, "who": true, "will": true, "with": true, "you": true, "your": true,
}
