package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed input rejected before any side effect
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates an embedding or completion provider could not be
	// reached after the allowed attempts
	ErrUnavailable = errors.New("provider unavailable")

	// ErrTransient marks a provider failure that is worth retrying
	ErrTransient = errors.New("transient provider failure")

	// ErrIngestionFailed indicates a chunk, extract, embed or index step failed
	ErrIngestionFailed = errors.New("ingestion failed")

	// ErrIngestionInProgress indicates the source is already being ingested
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrInsufficientContext indicates the context and retrieved concepts are too
	// sparse to produce a useful prompt
	ErrInsufficientContext = errors.New("insufficient context")

	// ErrInvalidProvider indicates an unknown AI provider or strategy was specified
	ErrInvalidProvider = errors.New("invalid provider")
)

// Keys for structured error values.
const (
	KeyStage     = "stage"
	KeySourceID  = "source_id"
	KeyContextID = "context_id"
	KeyConceptID = "concept_id"
	KeyAttempts  = "attempts"
	KeyField     = "field"
)

// Ingestion stages reported in IngestionFailed errors.
const (
	StageLoad    = "load"
	StageChunk   = "chunk"
	StageExtract = "extract"
	StageEmbed   = "embed"
	StageStage   = "stage"
	StageIndex   = "index"
)

// ErrorDetail collects the structured values attached along an error chain.
func ErrorDetail(err error) map[string]any {
	detail := map[string]any{}
	for err != nil {
		var ge *goerr.Error
		if !errors.As(err, &ge) {
			break
		}
		for k, v := range ge.Values() {
			detail[k] = v
		}
		err = errors.Unwrap(ge)
	}
	return detail
}

// ProviderError is returned by AI adapters for a single failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap exposes ErrTransient for retryable failures.
func (e *ProviderError) Unwrap() error {
	if e.Transient {
		return ErrTransient
	}
	return nil
}

// IsTransientStatus reports whether an HTTP status from a provider is retryable.
func IsTransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
