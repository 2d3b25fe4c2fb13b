package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/ai"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/memory"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven/mocks"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
)

type retrievalFixture struct {
	svc      *RetrievalService
	sources  *memory.SourceStore
	concepts *memory.ConceptStore
	index    *memory.VectorIndex
	embedder *mocks.MockEmbeddingService
	services *runtime.Services
}

func newRetrievalFixture(t *testing.T, policy domain.ConflictPolicy) *retrievalFixture {
	t.Helper()
	embedder := mocks.NewMockEmbeddingService()
	services := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"), embedder.Dimensions())
	require.NoError(t, services.SetEmbeddingService(embedder, domain.EmbeddingStrategyHash))

	f := &retrievalFixture{
		sources:  memory.NewSourceStore(),
		concepts: memory.NewConceptStore(),
		index:    memory.NewVectorIndex(embedder.Dimensions()),
		embedder: embedder,
		services: services,
	}
	f.svc = NewRetrievalService(RetrievalConfig{
		ConceptStore:   f.concepts,
		SourceStore:    f.sources,
		Index:          f.index,
		Services:       services,
		ConflictPolicy: policy,
	})
	return f
}

func (f *retrievalFixture) addSource(t *testing.T, id string, typ domain.SourceType) *domain.KnowledgeSource {
	t.Helper()
	src := domain.NewKnowledgeSource(id, id, "", typ, "")
	src.MarkProcessing()
	src.MarkProcessed(0)
	require.NoError(t, f.sources.Save(context.Background(), src))
	return src
}

// addConcept stores and indexes a concept whose vector is the mock embedding of text.
func (f *retrievalFixture) addConcept(t *testing.T, id, sourceID, typ, title, text string, confidence float64) {
	t.Helper()
	ctx := context.Background()
	c := &domain.KnowledgeConcept{
		ID: id, SourceID: sourceID, Type: typ, Title: title, Body: text,
		Confidence: confidence, Embedding: f.embedder.Vector(text), CreatedAt: time.Now(),
	}
	require.NoError(t, f.concepts.SaveBatch(ctx, []*domain.KnowledgeConcept{c}))
	require.NoError(t, f.index.Upsert(ctx, []domain.VectorEntry{{ConceptID: id, SourceID: sourceID, Vector: c.Embedding}}))
}

func itemIDs(bundle *domain.RetrievalBundle) []string {
	ids := make([]string, len(bundle.Items))
	for i, item := range bundle.Items {
		ids[i] = item.Concept.ID
	}
	return ids
}

func TestRetrieval_EmptyQuery(t *testing.T) {
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addConcept(t, "c1", "specs", "safety", "Safety", "safety rating", 0.9)

	for _, text := range []string{"", "   ", "\n\t"} {
		bundle, err := f.svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: text})
		require.NoError(t, err)
		assert.Equal(t, 0, bundle.Len())
		assert.NotNil(t, bundle.Items)
	}
	assert.Zero(t, f.embedder.Calls(), "empty query never reaches the embedder")
}

func TestRetrieval_SortedAndLimited(t *testing.T) {
	ctx := context.Background()
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addConcept(t, "exact", "specs", "safety", "A", "safety rating", 0.9)
	f.addConcept(t, "partial", "specs", "safety", "B", "safety rating award winning crash protection", 0.9)
	f.addConcept(t, "weak", "specs", "power", "C", "rating engine horsepower torque boxer", 0.9)
	f.addConcept(t, "none", "specs", "power", "D", "towing payload", 0.9)

	bundle, err := f.svc.Retrieve(ctx, domain.RetrievalQuery{Text: "safety rating", Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 4, bundle.Len(), "all results, no padding")
	assert.Equal(t, []string{"exact", "partial", "weak", "none"}, itemIDs(bundle))
	for i := 1; i < bundle.Len(); i++ {
		assert.GreaterOrEqual(t, bundle.Items[i-1].Score, bundle.Items[i].Score)
	}
	assert.Equal(t, "specs", bundle.Items[0].Source.ID)

	bundle, err = f.svc.Retrieve(ctx, domain.RetrievalQuery{Text: "safety rating", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "partial"}, itemIDs(bundle))
}

func TestRetrieval_TiesInCreationOrder(t *testing.T) {
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addConcept(t, "first", "specs", "safety", "A", "safety rating", 0.9)
	f.addConcept(t, "second", "specs", "safety", "B", "safety rating", 0.9)
	f.addConcept(t, "third", "specs", "safety", "C", "safety rating", 0.9)

	for i := 0; i < 5; i++ {
		bundle, err := f.svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: "safety rating"})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, itemIDs(bundle))
	}
}

func TestRetrieval_FiltersOverFetch(t *testing.T) {
	ctx := context.Background()
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addSource(t, "influence", domain.SourceTypePsychology)

	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		f.addConcept(t, id, "specs", "safety", id, "safety rating", 0.9)
	}
	f.addConcept(t, "p1", "influence", "principle", "Social Proof", "safety rating testimonials", 0.9)
	f.addConcept(t, "p2", "influence", "principle", "Scarcity", "safety rating limited availability", 0.4)

	bundle, err := f.svc.Retrieve(ctx, domain.RetrievalQuery{
		Text:    "safety rating",
		Limit:   1,
		Filters: domain.RetrievalFilters{SourceTypes: []domain.SourceType{domain.SourceTypePsychology}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, itemIDs(bundle), "lower-ranked match found by widening the search")

	bundle, err = f.svc.Retrieve(ctx, domain.RetrievalQuery{
		Text: "safety rating",
		Filters: domain.RetrievalFilters{
			SourceTypes:   []domain.SourceType{domain.SourceTypePsychology},
			MinConfidence: 0.5,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, itemIDs(bundle))

	bundle, err = f.svc.Retrieve(ctx, domain.RetrievalQuery{
		Text:    "safety rating",
		Filters: domain.RetrievalFilters{MinScore: 0.99},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, itemIDs(bundle))
}

func TestRetrieval_QueryVector(t *testing.T) {
	ctx := context.Background()
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addConcept(t, "c1", "specs", "safety", "Safety", "safety rating", 0.9)

	bundle, err := f.svc.Retrieve(ctx, domain.RetrievalQuery{Vector: f.embedder.Vector("safety rating")})
	require.NoError(t, err)
	require.Equal(t, 1, bundle.Len())
	assert.InDelta(t, 1.0, bundle.Items[0].Score, 1e-6)
	assert.Zero(t, f.embedder.Calls(), "vector queries skip embedding")

	_, err = f.svc.Retrieve(ctx, domain.RetrievalQuery{Vector: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieval_InvalidFilter(t *testing.T) {
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	_, err := f.svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:    "safety",
		Filters: domain.RetrievalFilters{SourceTypes: []domain.SourceType{"poetry"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieval_SkipsDanglingEntries(t *testing.T) {
	ctx := context.Background()
	f := newRetrievalFixture(t, domain.ConflictKeepAll)
	f.addSource(t, "specs", domain.SourceTypeTechnical)
	f.addConcept(t, "c1", "specs", "safety", "Safety", "safety rating", 0.9)
	require.NoError(t, f.index.Upsert(ctx, []domain.VectorEntry{
		{ConceptID: "ghost", SourceID: "specs", Vector: f.embedder.Vector("safety rating")},
	}))

	bundle, err := f.svc.Retrieve(ctx, domain.RetrievalQuery{Text: "safety rating"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, itemIDs(bundle))
}

func TestRetrieval_ConflictPolicies(t *testing.T) {
	setup := func(t *testing.T, policy domain.ConflictPolicy) *retrievalFixture {
		f := newRetrievalFixture(t, policy)
		older := f.addSource(t, "brochure-2023", domain.SourceTypeTechnical)
		newer := f.addSource(t, "brochure-2025", domain.SourceTypeTechnical)
		oldTime := time.Now().Add(-time.Hour)
		older.ProcessedAt = &oldTime
		require.NoError(t, f.sources.Save(context.Background(), older))
		require.NotNil(t, newer.ProcessedAt)

		f.addConcept(t, "old", "brochure-2023", "safety", "Safety Rating", "safety rating five star", 0.95)
		f.addConcept(t, "new", "brochure-2025", "safety", "safety  rating", "safety rating top pick", 0.7)
		f.addConcept(t, "other", "brochure-2025", "power", "Engine", "safety rating engine", 0.6)
		return f
	}

	tests := []struct {
		policy domain.ConflictPolicy
		want   []string
	}{
		{domain.ConflictKeepAll, []string{"old", "new", "other"}},
		{domain.ConflictPreferConfidence, []string{"old", "other"}},
		{domain.ConflictPreferRecent, []string{"new", "other"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := setup(t, tt.policy)
			bundle, err := f.svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: "safety rating", Limit: 10})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, itemIDs(bundle))
		})
	}
}

func TestRetrieval_EmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newRetrievalFixture(t, domain.ConflictKeepAll)

	f.embedder.SetFailNext(errors.New("connection refused"))
	_, err := f.svc.Retrieve(ctx, domain.RetrievalQuery{Text: "safety"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	require.NoError(t, f.services.SetEmbeddingService(nil, ""))
	_, err = f.svc.Retrieve(ctx, domain.RetrievalQuery{Text: "safety"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

// A one-sentence technical source about an IIHS award is found by a
// "safety rating" query with the deterministic hash embedder.
func TestRetrieval_IIHSScenarioWithHashEmbedding(t *testing.T) {
	ctx := context.Background()
	hash, err := ai.NewHashEmbedding(384)
	require.NoError(t, err)

	f := newIngestionFixture(t)
	services := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"), hash.Dimensions())
	require.NoError(t, services.SetEmbeddingService(hash, domain.EmbeddingStrategyHash))
	index := memory.NewVectorIndex(hash.Dimensions())

	orchestrator := NewIngestionOrchestrator(IngestionConfig{
		SourceStore:  f.sources,
		ConceptStore: f.concepts,
		Index:        index,
		Lock:         f.lock,
		Chunker:      f.orchestrator.chunker,
		Extractor:    f.extractor,
		Services:     services,
	})
	retrieval := NewRetrievalService(RetrievalConfig{
		ConceptStore: f.concepts,
		SourceStore:  f.sources,
		Index:        index,
		Services:     services,
	})

	src, err := orchestrator.Submit(ctx, submitTechnical("The 2025 Outback is an IIHS Top Safety Pick+."))
	require.NoError(t, err)
	_, err = orchestrator.Ingest(ctx, src.ID)
	require.NoError(t, err)

	bundle, err := retrieval.Retrieve(ctx, domain.RetrievalQuery{Text: "safety rating", Filters: domain.RetrievalFilters{MinScore: 0.5}})
	require.NoError(t, err)
	require.Equal(t, 1, bundle.Len())
	assert.Equal(t, src.ID, bundle.Items[0].Source.ID)
	assert.Contains(t, bundle.Items[0].Concept.Body, "IIHS Top Safety Pick+")
	assert.GreaterOrEqual(t, bundle.Items[0].Score, 0.5)
}

func TestRetrieval_FailedIngestionIsInvisible(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)
	retrieval := NewRetrievalService(RetrievalConfig{
		ConceptStore: f.concepts,
		SourceStore:  f.sources,
		Index:        f.index,
		Services:     f.services,
	})

	f.embedder.FailOnCall(1, errors.New("model crashed"))
	_, err := f.submitAndIngest(t, "outback", safetyText+"\n\n"+engineText)
	require.ErrorIs(t, err, domain.ErrIngestionFailed)

	bundle, err := retrieval.Retrieve(ctx, domain.RetrievalQuery{Text: "IIHS safety rating engine horsepower", Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, bundle.Len())
}
