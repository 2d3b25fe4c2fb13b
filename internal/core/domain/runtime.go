package domain

import "sync"

// RuntimeConfig tracks which backends were chosen at startup and which AI
// capabilities are currently usable. Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	VectorBackend  string // "memory" or "postgres"
	StorageBackend string // "memory" or "postgres"

	// Dynamic capability flags (updated when AI services change)
	embeddingStrategy   EmbeddingStrategy
	embeddingAvailable  bool
	completionAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(storageBackend, vectorBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		StorageBackend: storageBackend,
		VectorBackend:  vectorBackend,
	}
}

// EmbeddingAvailable returns whether an embedding service is installed
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// EmbeddingStrategy returns the strategy of the installed embedding service
func (c *RuntimeConfig) EmbeddingStrategy() EmbeddingStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingStrategy
}

// CompletionAvailable returns whether a completion provider is installed
func (c *RuntimeConfig) CompletionAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completionAvailable
}

// SetEmbedding updates the embedding capability
func (c *RuntimeConfig) SetEmbedding(available bool, strategy EmbeddingStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
	c.embeddingStrategy = strategy
}

// SetCompletionAvailable updates the completion capability
func (c *RuntimeConfig) SetCompletionAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completionAvailable = available
}

// CanSynthesize returns true if recommendations can be generated
func (c *RuntimeConfig) CanSynthesize() bool {
	return c.EmbeddingAvailable() && c.CompletionAvailable()
}
