package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore keeps knowledge sources and their documents in process memory.
// Values are copied on the way in and out.
type SourceStore struct {
	mu        sync.RWMutex
	sources   map[string]*domain.KnowledgeSource
	documents map[string]*domain.SourceDocument
}

// NewSourceStore creates an empty SourceStore
func NewSourceStore() *SourceStore {
	return &SourceStore{
		sources:   make(map[string]*domain.KnowledgeSource),
		documents: make(map[string]*domain.SourceDocument),
	}
}

func (s *SourceStore) Save(ctx context.Context, source *domain.KnowledgeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *source
	s.sources[source.ID] = &cp
	return nil
}

func (s *SourceStore) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *source
	return &cp, nil
}

func (s *SourceStore) GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*domain.KnowledgeSource, len(ids))
	for _, id := range ids {
		if source, ok := s.sources[id]; ok {
			cp := *source
			result[id] = &cp
		}
	}
	return result, nil
}

func (s *SourceStore) List(ctx context.Context) ([]*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.KnowledgeSource, 0, len(s.sources))
	for _, source := range s.sources {
		cp := *source
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *SourceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sources, id)
	delete(s.documents, id)
	return nil
}

func (s *SourceStore) SaveDocument(ctx context.Context, doc *domain.SourceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.documents[doc.SourceID] = &cp
	return nil
}

func (s *SourceStore) GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}
