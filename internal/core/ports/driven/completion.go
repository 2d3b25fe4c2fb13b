package driven

import (
	"context"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// CompletionService calls an external text-generation provider once.
// Failures worth retrying are reported as errors matching domain.ErrTransient,
// usually a *domain.ProviderError. Retry policy lives with the caller.
type CompletionService interface {
	// Complete generates text for the prompt
	Complete(ctx context.Context, prompt *domain.Prompt, opts domain.CompletionOptions) (*domain.Completion, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the provider is reachable
	Ping(ctx context.Context) error

	// Close releases resources held by the service
	Close() error
}
