package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
)

var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService ranks indexed concepts against a query.
type RetrievalService struct {
	conceptStore driven.ConceptStore
	sourceStore  driven.SourceStore
	index        driven.VectorIndex
	services     *runtime.Services
	policy       domain.ConflictPolicy
	minScore     float64
	logger       *slog.Logger
}

// RetrievalConfig holds dependencies for RetrievalService.
type RetrievalConfig struct {
	ConceptStore driven.ConceptStore
	SourceStore  driven.SourceStore
	Index        driven.VectorIndex
	Services     *runtime.Services

	// ConflictPolicy decides between same-topic concepts of different
	// sources. Empty means ConflictPreferConfidence.
	ConflictPolicy domain.ConflictPolicy

	// MinScore applies when a query sets no MinScore of its own
	MinScore float64

	Logger *slog.Logger
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(cfg RetrievalConfig) *RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.ConflictPolicy
	if policy == "" {
		policy = domain.ConflictPreferConfidence
	}
	return &RetrievalService{
		conceptStore: cfg.ConceptStore,
		sourceStore:  cfg.SourceStore,
		index:        cfg.Index,
		services:     cfg.Services,
		policy:       policy,
		minScore:     cfg.MinScore,
		logger:       logger,
	}
}

// Retrieve returns up to Limit concepts sorted by descending score, ties in
// creation order. An empty or whitespace-only text query with no vector
// returns an empty bundle without calling the embedding service.
func (s *RetrievalService) Retrieve(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalBundle, error) {
	bundle := &domain.RetrievalBundle{Query: strings.TrimSpace(query.Text), Items: []*domain.RetrievedItem{}}

	limit := query.Limit
	if limit <= 0 {
		limit = domain.DefaultRetrievalLimit
	}
	if limit > domain.MaxRetrievalLimit {
		limit = domain.MaxRetrievalLimit
	}
	for _, t := range query.Filters.SourceTypes {
		if !t.IsValid() {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "unknown source type filter",
				goerr.V(domain.KeyField, "filters.source_types"), goerr.V("type", string(t)))
		}
	}

	vector, err := s.queryVector(ctx, query, bundle.Query)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		return bundle, nil
	}

	minScore := query.Filters.MinScore
	if minScore <= 0 {
		minScore = s.minScore
	}

	items, err := s.collect(ctx, vector, limit, minScore, query.Filters)
	if err != nil {
		return nil, err
	}
	bundle.Items = items

	s.logger.Debug("retrieval completed", "results", len(items), "limit", limit, "min_score", minScore)
	return bundle, nil
}

// queryVector returns the vector to search with, or nil for an empty query.
func (s *RetrievalService) queryVector(ctx context.Context, query domain.RetrievalQuery, text string) ([]float32, error) {
	if len(query.Vector) > 0 {
		if len(query.Vector) != s.index.Dimensions() {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "query vector has wrong dimension",
				goerr.V(domain.KeyField, "vector"),
				goerr.V("expected", s.index.Dimensions()), goerr.V("actual", len(query.Vector)))
		}
		return query.Vector, nil
	}
	if text == "" {
		return nil, nil
	}

	svc := s.services.EmbeddingService()
	if svc == nil {
		return nil, goerr.Wrap(domain.ErrUnavailable, "no embedding service configured")
	}
	vector, err := svc.EmbedQuery(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", domain.ErrUnavailable, err), "failed to embed query",
			goerr.V("model", svc.Model()))
	}
	return vector, nil
}

// collect searches the index, widening topK until enough items survive
// filtering and conflict resolution or the index has nothing more to give.
func (s *RetrievalService) collect(ctx context.Context, vector []float32, limit int, minScore float64, filters domain.RetrievalFilters) ([]*domain.RetrievedItem, error) {
	concepts := make(map[string]*domain.KnowledgeConcept)
	sources := make(map[string]*domain.KnowledgeSource)

	topK := limit
	for {
		matches, err := s.index.Search(ctx, vector, topK, minScore)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		if err := s.load(ctx, matches, concepts, sources); err != nil {
			return nil, err
		}

		var candidates []*domain.RetrievedItem
		for _, m := range matches {
			concept, ok := concepts[m.ConceptID]
			if !ok {
				continue
			}
			source, ok := sources[concept.SourceID]
			if !ok {
				continue
			}
			if !filters.AllowsSourceType(source.Type) || concept.Confidence < filters.MinConfidence {
				continue
			}
			candidates = append(candidates, &domain.RetrievedItem{Concept: concept, Source: source, Score: m.Score})
		}

		items := resolveConflicts(candidates, s.policy)
		if len(items) >= limit || len(matches) < topK {
			if len(items) > limit {
				items = items[:limit]
			}
			if items == nil {
				items = []*domain.RetrievedItem{}
			}
			return items, nil
		}
		topK *= 2
	}
}

// load fetches the concepts and sources of matches not seen yet.
func (s *RetrievalService) load(ctx context.Context, matches []domain.VectorMatch, concepts map[string]*domain.KnowledgeConcept, sources map[string]*domain.KnowledgeSource) error {
	var conceptIDs []string
	for _, m := range matches {
		if _, ok := concepts[m.ConceptID]; !ok {
			conceptIDs = append(conceptIDs, m.ConceptID)
		}
	}
	if len(conceptIDs) == 0 {
		return nil
	}

	found, err := s.conceptStore.GetBatch(ctx, conceptIDs)
	if err != nil {
		return fmt.Errorf("failed to load concepts: %w", err)
	}

	var sourceIDs []string
	for id, c := range found {
		concepts[id] = c
		if _, ok := sources[c.SourceID]; !ok && !containsString(sourceIDs, c.SourceID) {
			sourceIDs = append(sourceIDs, c.SourceID)
		}
	}
	if len(sourceIDs) == 0 {
		return nil
	}

	srcs, err := s.sourceStore.GetBatch(ctx, sourceIDs)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	for id, src := range srcs {
		sources[id] = src
	}
	return nil
}

// resolveConflicts drops items that lose a same-topic conflict. Two items
// conflict when they come from different sources and share concept type and
// normalised title. Items of the winning source all stay, order is kept.
func resolveConflicts(items []*domain.RetrievedItem, policy domain.ConflictPolicy) []*domain.RetrievedItem {
	if policy == domain.ConflictKeepAll || len(items) < 2 {
		return items
	}

	winners := make(map[string]*domain.RetrievedItem)
	for _, item := range items {
		key := topicKey(item.Concept)
		best, ok := winners[key]
		if !ok || beats(item, best, policy) {
			winners[key] = item
		}
	}

	kept := make([]*domain.RetrievedItem, 0, len(items))
	for _, item := range items {
		if winners[topicKey(item.Concept)].Source.ID == item.Source.ID {
			kept = append(kept, item)
		}
	}
	return kept
}

// beats reports whether a should replace the current winner b. Items arrive
// in ranking order, so equal candidates keep the earlier one.
func beats(a, b *domain.RetrievedItem, policy domain.ConflictPolicy) bool {
	switch policy {
	case domain.ConflictPreferRecent:
		return processedAt(a.Source).After(processedAt(b.Source))
	default:
		return a.Concept.Confidence > b.Concept.Confidence
	}
}

func processedAt(s *domain.KnowledgeSource) time.Time {
	if s.ProcessedAt != nil {
		return *s.ProcessedAt
	}
	return s.UpdatedAt
}

func topicKey(c *domain.KnowledgeConcept) string {
	return c.Type + "\x00" + strings.Join(strings.Fields(strings.ToLower(c.Title)), " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
