package mocks

import (
	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

var _ driven.ConceptExtractor = (*MockExtractor)(nil)

// MockExtractor delegates to ExtractFn, or to Next when ExtractFn is nil.
// Err, when set, is returned for every chunk after the first FailAfter chunks.
type MockExtractor struct {
	Next      driven.ConceptExtractor
	ExtractFn func(chunk domain.Chunk, sourceType domain.SourceType) ([]domain.ConceptDraft, error)
	Err       error
	FailAfter int

	seen int
}

func (m *MockExtractor) Extract(chunk domain.Chunk, sourceType domain.SourceType) ([]domain.ConceptDraft, error) {
	m.seen++
	if m.Err != nil && m.seen > m.FailAfter {
		return nil, m.Err
	}
	if m.ExtractFn != nil {
		return m.ExtractFn(chunk, sourceType)
	}
	if m.Next != nil {
		return m.Next.Extract(chunk, sourceType)
	}
	return nil, nil
}

// Seen returns the number of chunks passed to Extract
func (m *MockExtractor) Seen() int {
	return m.seen
}
