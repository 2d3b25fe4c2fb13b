package acceptance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/ai"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/memory"
	"github.com/Rikshjoeriks/sales-assistant/internal/chunking"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven/mocks"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/services"
	"github.com/Rikshjoeriks/sales-assistant/internal/extraction"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
	"github.com/Rikshjoeriks/sales-assistant/internal/worker"
)

const embeddingDimensions = 384

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "sales-assistant",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// world is the in-memory system under test, rebuilt for every scenario.
type world struct {
	logger          *slog.Logger
	services        *runtime.Services
	sources         *memory.SourceStore
	recommendations *memory.RecommendationStore
	queue           *memory.TaskQueue
	ingestion       *services.IngestionOrchestrator
	retrieval       *services.RetrievalService
	completion      *mocks.MockCompletionService

	submitted []string
	bundle    *domain.RetrievalBundle
	prompt    *domain.Prompt

	recommendation *domain.SalesRecommendation
	synthesisErr   error
}

func newWorld() (*world, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := ai.NewHashEmbedding(embeddingDimensions)
	if err != nil {
		return nil, err
	}
	svcs := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"), embeddingDimensions)
	if err := svcs.SetEmbeddingService(hash, domain.EmbeddingStrategyHash); err != nil {
		return nil, err
	}

	chunker, err := chunking.NewChunker(chunking.DefaultConfig())
	if err != nil {
		return nil, err
	}
	rules, err := extraction.DefaultRuleset()
	if err != nil {
		return nil, err
	}

	w := &world{
		logger:          logger,
		services:        svcs,
		sources:         memory.NewSourceStore(),
		recommendations: memory.NewRecommendationStore(),
		queue:           memory.NewTaskQueue(),
	}
	concepts := memory.NewConceptStore()
	index := memory.NewVectorIndex(embeddingDimensions)

	w.ingestion = services.NewIngestionOrchestrator(services.IngestionConfig{
		SourceStore:  w.sources,
		ConceptStore: concepts,
		Index:        index,
		Lock:         memory.NewLock(),
		Chunker:      chunker,
		Extractor:    extraction.NewExtractor(rules),
		Services:     svcs,
		Queue:        w.queue,
		Normaliser:   chunking.NewWhitespaceNormalizer(),
		Logger:       logger,
	})
	w.retrieval = services.NewRetrievalService(services.RetrievalConfig{
		ConceptStore: concepts,
		SourceStore:  w.sources,
		Index:        index,
		Services:     svcs,
		Logger:       logger,
	})
	return w, nil
}

func (w *world) aSourceWithText(ctx context.Context, typ, title string, text *godog.DocString) error {
	src, err := w.ingestion.Submit(ctx, driving.SubmitSourceRequest{
		Title: title,
		Type:  domain.SourceType(typ),
		Text:  text.Content,
	})
	if err != nil {
		return err
	}
	w.submitted = append(w.submitted, src.ID)
	return nil
}

// theWorkerProcessesTheQueue runs a real worker until every submitted source
// has settled.
func (w *world) theWorkerProcessesTheQueue(ctx context.Context) error {
	wk := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      w.queue,
		Ingester:       w.ingestion,
		Logger:         w.logger,
		Concurrency:    2,
		DequeueTimeout: 20 * time.Millisecond,
		ErrorBackoff:   10 * time.Millisecond,
	})
	if err := wk.Start(ctx); err != nil {
		return err
	}
	defer wk.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		settled := true
		for _, id := range w.submitted {
			src, err := w.sources.Get(ctx, id)
			if err != nil {
				return err
			}
			if src.Status == domain.StatusQueued || src.Status == domain.StatusProcessing {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("sources were not ingested in time")
}

func (w *world) theSourceIsWithConcepts(ctx context.Context, status string, minConcepts int) error {
	if len(w.submitted) == 0 {
		return errors.New("no source was submitted")
	}
	src, err := w.sources.Get(ctx, w.submitted[len(w.submitted)-1])
	if err != nil {
		return err
	}
	if string(src.Status) != status {
		return fmt.Errorf("expected status %q, got %q (last error %q)", status, src.Status, src.LastError)
	}
	if src.ConceptCount < minConcepts {
		return fmt.Errorf("expected at least %d concepts, got %d", minConcepts, src.ConceptCount)
	}
	return nil
}

func (w *world) iRetrieveWithMinimumScore(ctx context.Context, query string, minScore float64) error {
	bundle, err := w.retrieval.Retrieve(ctx, domain.RetrievalQuery{
		Text:    query,
		Filters: domain.RetrievalFilters{MinScore: minScore},
	})
	if err != nil {
		return err
	}
	w.bundle = bundle
	return nil
}

func (w *world) conceptsAreReturned(n int) error {
	if w.bundle == nil {
		return errors.New("nothing was retrieved")
	}
	if got := len(w.bundle.Items); got != n {
		return fmt.Errorf("expected %d concepts, got %d", n, got)
	}
	return nil
}

func (w *world) theTopConceptMentions(text string, minScore float64) error {
	if w.bundle == nil || len(w.bundle.Items) == 0 {
		return errors.New("no concept was retrieved")
	}
	top := w.bundle.Items[0]
	if !strings.Contains(top.Concept.Body, text) {
		return fmt.Errorf("top concept %q does not mention %q", top.Concept.Body, text)
	}
	if top.Score < minScore {
		return fmt.Errorf("expected score >= %.2f, got %.4f", minScore, top.Score)
	}
	return nil
}

func unavailable() error {
	return &domain.ProviderError{Provider: "openai", StatusCode: 503, Message: "service overloaded", Transient: true}
}

func (w *world) theProviderFailsThenAnswers(failures int, answer *godog.DocString) error {
	steps := make([]mocks.CompletionStep, 0, failures+1)
	for range failures {
		steps = append(steps, mocks.CompletionStep{Err: unavailable()})
	}
	steps = append(steps, mocks.CompletionStep{Completion: &domain.Completion{
		Text:  strings.TrimSpace(answer.Content),
		Model: "gpt-4o-mini",
	}})
	w.completion = mocks.NewMockCompletionService(steps...)
	return nil
}

func (w *world) theProviderAlwaysFails() error {
	steps := make([]mocks.CompletionStep, 10)
	for i := range steps {
		steps[i] = mocks.CompletionStep{Err: unavailable()}
	}
	w.completion = mocks.NewMockCompletionService(steps...)
	return nil
}

func (w *world) iRequestARecommendation(ctx context.Context) error {
	if w.completion == nil {
		return errors.New("no completion provider configured")
	}
	w.services.SetCompletionService(w.completion)

	synthesis := services.NewSynthesisService(services.SynthesisConfig{
		ContextStore:        memory.NewContextStore(),
		RecommendationStore: w.recommendations,
		Retrieval:           w.retrieval,
		Completion: services.NewCompletionClient(services.CompletionClientConfig{
			Services:    w.services,
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			CallTimeout: time.Second,
			Logger:      w.logger,
		}),
		Guardrails: services.NewGuardrails(services.DefaultDenylist),
		Logger:     w.logger,
	})

	salesCtx := &domain.SalesContext{
		CustomerID: "cust-42",
		Signals: domain.CustomerSignals{
			ProductInterest: "2025 Subaru Outback",
			Stage:           domain.SalesStagePresentation,
			Concerns:        []string{"safety for teenage drivers"},
			DecisionFactors: []string{"safety", "reliability"},
			PersonalityTag:  "analytical",
		},
		Description: "Parent of two comparing family SUVs after a minor accident, worried about teenage driver safety.",
	}
	w.recommendation, w.synthesisErr = synthesis.Synthesize(ctx, salesCtx, domain.DefaultOutputPreferences())
	return nil
}

func (w *world) aRecommendationIsReturned() error {
	if w.synthesisErr != nil {
		return fmt.Errorf("synthesis failed: %w", w.synthesisErr)
	}
	if w.recommendation == nil || w.recommendation.ID == "" {
		return errors.New("no recommendation was returned")
	}
	return nil
}

func (w *world) theRecommendationRecordsAttempts(n int) error {
	if w.recommendation == nil {
		return errors.New("no recommendation was returned")
	}
	if w.recommendation.Attempts != n {
		return fmt.Errorf("expected %d attempts, got %d", n, w.recommendation.Attempts)
	}
	return nil
}

func (w *world) theRecommendationTextMentions(text string) error {
	if w.recommendation == nil {
		return errors.New("no recommendation was returned")
	}
	if !strings.Contains(w.recommendation.Text, text) {
		return fmt.Errorf("recommendation %q does not mention %q", w.recommendation.Text, text)
	}
	return nil
}

func (w *world) theRequestFailsUnavailable() error {
	if w.synthesisErr == nil {
		return errors.New("expected synthesis to fail")
	}
	if !errors.Is(w.synthesisErr, domain.ErrUnavailable) {
		return fmt.Errorf("expected an unavailable error, got %v", w.synthesisErr)
	}
	return nil
}

func (w *world) recommendationsAreStored(n int) error {
	if got := w.recommendations.Count(); got != n {
		return fmt.Errorf("expected %d stored recommendations, got %d", n, got)
	}
	return nil
}

// aBundleOfConcepts builds n concepts with distinct descending scores in
// shuffled order.
func (w *world) aBundleOfConcepts(n int) error {
	src := &domain.KnowledgeSource{ID: "specs", Title: "Outback Specifications", Type: domain.SourceTypeTechnical}
	items := make([]*domain.RetrievedItem, n)
	for i := range items {
		items[i] = &domain.RetrievedItem{
			Concept: &domain.KnowledgeConcept{
				ID:    fmt.Sprintf("c%02d", i),
				Title: fmt.Sprintf("Feature %02d", i),
				Body:  fmt.Sprintf("Feature %02d body describes one measurable benefit of the vehicle in detail.", i),
			},
			Source: src,
			Score:  1 - float64(i)/100,
		}
	}
	r := rand.New(rand.NewSource(11))
	r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	w.bundle = &domain.RetrievalBundle{Items: items}
	return nil
}

func (w *world) aPromptIsBuiltWithBudget(budget int) error {
	salesCtx := &domain.SalesContext{
		ID: "ctx-1",
		Signals: domain.CustomerSignals{
			ProductInterest: "2025 Subaru Outback",
			Concerns:        []string{"safety for teenage drivers"},
		},
		Description: "Parent of two comparing family SUVs after a minor accident.",
	}
	prompt, err := services.NewPromptBuilder().Build(salesCtx, w.bundle, domain.OutputPreferences{PromptBudget: budget})
	if err != nil {
		return err
	}
	w.prompt = prompt
	return nil
}

func (w *world) theIncludedConceptsAreTheHighestScoring() error {
	if len(w.prompt.Citations) == 0 {
		return errors.New("no concept was included")
	}
	for i, c := range w.prompt.Citations {
		if want := fmt.Sprintf("c%02d", i); c.ConceptID != want {
			return fmt.Errorf("citation %d is %s, want %s", i+1, c.ConceptID, want)
		}
	}
	return nil
}

func (w *world) someConceptsWereDropped() error {
	if w.prompt.Dropped == 0 {
		return errors.New("expected the budget to drop concepts")
	}
	if got := len(w.prompt.Citations) + w.prompt.Dropped; got != len(w.bundle.Items) {
		return fmt.Errorf("included plus dropped is %d, want %d", got, len(w.bundle.Items))
	}
	return nil
}

func (w *world) noIncludedBodyIsTruncated() error {
	for _, c := range w.prompt.Citations {
		if !strings.Contains(w.prompt.User, c.Body) {
			return fmt.Errorf("body of %s is not in the prompt in full", c.ConceptID)
		}
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	var w *world

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		var err error
		w, err = newWorld()
		return ctx, err
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if w != nil {
			_ = w.queue.Close()
		}
		return ctx, nil
	})

	sc.Step(`^a "([^"]*)" source titled "([^"]*)" with text:$`, func(ctx context.Context, typ, title string, text *godog.DocString) error {
		return w.aSourceWithText(ctx, typ, title, text)
	})
	sc.Step(`^the ingestion worker processes the queue$`, func(ctx context.Context) error {
		return w.theWorkerProcessesTheQueue(ctx)
	})
	sc.Step(`^the source is "([^"]*)" with at least (\d+) concepts?$`, func(ctx context.Context, status string, n int) error {
		return w.theSourceIsWithConcepts(ctx, status, n)
	})
	sc.Step(`^I retrieve "([^"]*)" with a minimum score of ([\d.]+)$`, func(ctx context.Context, query string, minScore float64) error {
		return w.iRetrieveWithMinimumScore(ctx, query, minScore)
	})
	sc.Step(`^(\d+) concepts? (?:is|are) returned$`, func(n int) error { return w.conceptsAreReturned(n) })
	sc.Step(`^the top concept mentions "([^"]*)" with a score of at least ([\d.]+)$`, func(text string, minScore float64) error {
		return w.theTopConceptMentions(text, minScore)
	})

	sc.Step(`^the completion provider fails (\d+) times and then answers:$`, func(n int, answer *godog.DocString) error {
		return w.theProviderFailsThenAnswers(n, answer)
	})
	sc.Step(`^the completion provider fails every time$`, func() error { return w.theProviderAlwaysFails() })
	sc.Step(`^I request a recommendation for a parent worried about teenage driver safety$`, func(ctx context.Context) error {
		return w.iRequestARecommendation(ctx)
	})
	sc.Step(`^a recommendation is returned$`, func() error { return w.aRecommendationIsReturned() })
	sc.Step(`^the recommendation records (\d+) attempts$`, func(n int) error { return w.theRecommendationRecordsAttempts(n) })
	sc.Step(`^the recommendation text mentions "([^"]*)"$`, func(text string) error { return w.theRecommendationTextMentions(text) })
	sc.Step(`^the request fails because the provider is unavailable$`, func() error { return w.theRequestFailsUnavailable() })
	sc.Step(`^(\d+) recommendations? (?:is|are) stored$`, func(n int) error { return w.recommendationsAreStored(n) })

	sc.Step(`^a retrieval bundle of (\d+) concepts with distinct scores$`, func(n int) error { return w.aBundleOfConcepts(n) })
	sc.Step(`^a prompt is built with a budget of (\d+) tokens$`, func(budget int) error { return w.aPromptIsBuiltWithBudget(budget) })
	sc.Step(`^the included concepts are the highest scoring ones$`, func() error { return w.theIncludedConceptsAreTheHighestScoring() })
	sc.Step(`^some concepts were dropped$`, func() error { return w.someConceptsWereDropped() })
	sc.Step(`^no included concept body is truncated$`, func() error { return w.noIncludedBodyIsTruncated() })
}
