package memory

import (
	"context"
	"sync"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConceptStore = (*ConceptStore)(nil)

// ConceptStore keeps knowledge concepts in process memory, remembering the
// order in which they were saved.
type ConceptStore struct {
	mu       sync.RWMutex
	concepts map[string]*domain.KnowledgeConcept
	order    []string
	failNext error
}

// NewConceptStore creates an empty ConceptStore
func NewConceptStore() *ConceptStore {
	return &ConceptStore{concepts: make(map[string]*domain.KnowledgeConcept)}
}

// SetFailNext makes the next write return err. Used to exercise rollback paths.
func (s *ConceptStore) SetFailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *ConceptStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *ConceptStore) SaveBatch(ctx context.Context, concepts []*domain.KnowledgeConcept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	for _, c := range concepts {
		if _, exists := s.concepts[c.ID]; !exists {
			s.order = append(s.order, c.ID)
		}
		s.concepts[c.ID] = copyConcept(c)
	}
	return nil
}

func (s *ConceptStore) GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*domain.KnowledgeConcept, len(ids))
	for _, id := range ids {
		if c, ok := s.concepts[id]; ok {
			result[id] = copyConcept(c)
		}
	}
	return result, nil
}

func (s *ConceptStore) ListBySource(ctx context.Context, sourceID string) ([]*domain.KnowledgeConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.KnowledgeConcept
	for _, id := range s.order {
		if c := s.concepts[id]; c.SourceID == sourceID {
			result = append(result, copyConcept(c))
		}
	}
	return result, nil
}

func (s *ConceptStore) DeleteBatch(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
		delete(s.concepts, id)
	}
	s.compact(func(id string) bool { return remove[id] })
	return nil
}

func (s *ConceptStore) DeleteBySource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	for id, c := range s.concepts {
		if c.SourceID == sourceID {
			delete(s.concepts, id)
		}
	}
	s.compact(func(id string) bool { _, ok := s.concepts[id]; return !ok })
	return nil
}

// Count returns the number of stored concepts
func (s *ConceptStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concepts)
}

func (s *ConceptStore) compact(drop func(id string) bool) {
	kept := s.order[:0]
	for _, id := range s.order {
		if !drop(id) {
			kept = append(kept, id)
		}
	}
	s.order = kept
}

func copyConcept(c *domain.KnowledgeConcept) *domain.KnowledgeConcept {
	cp := *c
	cp.Keywords = append([]string(nil), c.Keywords...)
	cp.Embedding = append([]float32(nil), c.Embedding...)
	return &cp
}
