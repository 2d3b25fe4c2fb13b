package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ContextStore        = (*ContextStore)(nil)
	_ driven.RecommendationStore = (*RecommendationStore)(nil)
)

// ContextStore keeps sales contexts in process memory
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*domain.SalesContext
}

// NewContextStore creates an empty ContextStore
func NewContextStore() *ContextStore {
	return &ContextStore{contexts: make(map[string]*domain.SalesContext)}
}

func (s *ContextStore) Create(ctx context.Context, salesCtx *domain.SalesContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contexts[salesCtx.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *salesCtx
	s.contexts[salesCtx.ID] = &cp
	return nil
}

func (s *ContextStore) Get(ctx context.Context, id string) (*domain.SalesContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// RecommendationStore keeps recommendations and their references in process
// memory. A save either stores the recommendation with every reference or
// nothing.
type RecommendationStore struct {
	mu              sync.RWMutex
	recommendations map[string]*domain.SalesRecommendation
	failNext        error
}

// NewRecommendationStore creates an empty RecommendationStore
func NewRecommendationStore() *RecommendationStore {
	return &RecommendationStore{recommendations: make(map[string]*domain.SalesRecommendation)}
}

// SetFailNext makes the next Save return err
func (s *RecommendationStore) SetFailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *RecommendationStore) Save(ctx context.Context, rec *domain.SalesRecommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := s.recommendations[rec.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.recommendations[rec.ID] = copyRecommendation(rec)
	return nil
}

func (s *RecommendationStore) Get(ctx context.Context, id string) (*domain.SalesRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recommendations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecommendation(rec), nil
}

func (s *RecommendationStore) ListByContext(ctx context.Context, contextID string) ([]*domain.SalesRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.SalesRecommendation
	for _, rec := range s.recommendations {
		if rec.ContextID == contextID {
			result = append(result, copyRecommendation(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Count returns the number of stored recommendations
func (s *RecommendationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recommendations)
}

func copyRecommendation(rec *domain.SalesRecommendation) *domain.SalesRecommendation {
	cp := *rec
	cp.References = append([]domain.SourceReference(nil), rec.References...)
	return &cp
}
