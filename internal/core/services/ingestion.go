package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
)

var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

const (
	defaultEmbedBatchSize   = 32
	defaultEmbedConcurrency = 4
	defaultLockTTL          = 10 * time.Minute
	lockPollInterval        = 100 * time.Millisecond

	// stale concept rows are invisible once a generation commits; cleanup
	// retries a few times and otherwise leaves them to the next run
	cleanupAttempts = 3
	cleanupBackoff  = 20 * time.Millisecond

	// Concepts rereads when a commit lands between its reads
	listAttempts = 3
)

// IngestionOrchestrator coordinates the ingestion pipeline of one source:
//  1. Take the per-source lock
//  2. Mark the source processing
//  3. Normalise and chunk the stored document
//  4. Extract concept drafts from every chunk
//  5. Embed the drafts in bounded concurrent batches
//  6. Flush: save concepts under a new generation, swap index entries,
//     commit the generation on the source, drop the previous rows
//
// Readers see a source's concepts through the index and through the
// committed generation, both of which switch only in step 6. A failure
// anywhere earlier leaves the previous concept set current.
type IngestionOrchestrator struct {
	sourceStore  driven.SourceStore
	conceptStore driven.ConceptStore
	index        driven.VectorIndex
	queue        driven.TaskQueue
	lock         driven.DistributedLock
	normaliser   driven.TextNormaliser
	chunker      driven.Chunker
	extractor    driven.ConceptExtractor
	filter       driven.DraftFilter
	services     *runtime.Services
	logger       *slog.Logger

	embedBatchSize   int
	embedConcurrency int
	lockTTL          time.Duration
	lockWait         time.Duration
}

// IngestionConfig holds dependencies for IngestionOrchestrator.
type IngestionConfig struct {
	SourceStore  driven.SourceStore
	ConceptStore driven.ConceptStore
	Index        driven.VectorIndex
	Lock         driven.DistributedLock
	Chunker      driven.Chunker
	Extractor    driven.ConceptExtractor
	Services     *runtime.Services

	// Queue receives ingest tasks from Submit. When nil, the caller runs
	// Ingest itself.
	Queue driven.TaskQueue

	// Optional pipeline stages
	Normaliser driven.TextNormaliser
	Filter     driven.DraftFilter

	EmbedBatchSize   int
	EmbedConcurrency int
	LockTTL          time.Duration
	LockWait         time.Duration // how long Ingest waits for a busy source; zero tries once

	Logger *slog.Logger
}

// NewIngestionOrchestrator creates a new ingestion orchestrator.
func NewIngestionOrchestrator(cfg IngestionConfig) *IngestionOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &IngestionOrchestrator{
		sourceStore:      cfg.SourceStore,
		conceptStore:     cfg.ConceptStore,
		index:            cfg.Index,
		queue:            cfg.Queue,
		lock:             cfg.Lock,
		normaliser:       cfg.Normaliser,
		chunker:          cfg.Chunker,
		extractor:        cfg.Extractor,
		filter:           cfg.Filter,
		services:         cfg.Services,
		logger:           logger,
		embedBatchSize:   cfg.EmbedBatchSize,
		embedConcurrency: cfg.EmbedConcurrency,
		lockTTL:          cfg.LockTTL,
		lockWait:         cfg.LockWait,
	}
	if o.embedBatchSize <= 0 {
		o.embedBatchSize = defaultEmbedBatchSize
	}
	if o.embedConcurrency <= 0 {
		o.embedConcurrency = defaultEmbedConcurrency
	}
	if o.lockTTL <= 0 {
		o.lockTTL = defaultLockTTL
	}
	return o
}

// Submit stores the document text, queues the source and schedules ingestion.
func (o *IngestionOrchestrator) Submit(ctx context.Context, req driving.SubmitSourceRequest) (*domain.KnowledgeSource, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "document text is empty", goerr.V(domain.KeyField, "text"))
	}
	if req.Type != "" && !req.Type.IsValid() {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "unknown source type",
			goerr.V(domain.KeyField, "type"), goerr.V("type", string(req.Type)))
	}

	var source *domain.KnowledgeSource
	if req.SourceID != "" {
		// a worker holding the lock may be reading the document
		release, err := o.tryLock(ctx, req.SourceID)
		if err != nil {
			return nil, err
		}
		defer release()

		existing, err := o.sourceStore.Get(ctx, req.SourceID)
		switch {
		case err == nil:
			source = existing
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("failed to get source: %w", err)
		}
	}

	if source == nil {
		if strings.TrimSpace(req.Title) == "" {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "title is required", goerr.V(domain.KeyField, "title"))
		}
		if req.Type == "" {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "source type is required", goerr.V(domain.KeyField, "type"))
		}
		source = domain.NewKnowledgeSource(req.SourceID, strings.TrimSpace(req.Title), req.Author, req.Type, req.Locator)
	} else {
		if source.Status == domain.StatusProcessing {
			return nil, goerr.Wrap(domain.ErrIngestionInProgress, "source is being ingested",
				goerr.V(domain.KeySourceID, source.ID))
		}
		applySubmitRequest(source, req)
		source.MarkQueued()
	}

	if err := o.sourceStore.SaveDocument(ctx, &domain.SourceDocument{
		SourceID:  source.ID,
		Text:      req.Text,
		UpdatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	if err := o.sourceStore.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}

	if err := o.enqueue(ctx, source.ID); err != nil {
		return nil, err
	}

	o.logger.Info("source queued for ingestion", "source_id", source.ID, "type", source.Type)
	return source, nil
}

func applySubmitRequest(source *domain.KnowledgeSource, req driving.SubmitSourceRequest) {
	if t := strings.TrimSpace(req.Title); t != "" {
		source.Title = t
	}
	if req.Author != "" {
		source.Author = req.Author
	}
	if req.Type != "" {
		source.Type = req.Type
	}
	if req.Locator != "" {
		source.Locator = req.Locator
	}
}

// Requeue schedules another ingestion of the stored document.
func (o *IngestionOrchestrator) Requeue(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error) {
	release, err := o.tryLock(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer release()

	source, err := o.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Status == domain.StatusProcessing {
		return nil, goerr.Wrap(domain.ErrIngestionInProgress, "source is being ingested",
			goerr.V(domain.KeySourceID, sourceID))
	}
	if _, err := o.sourceStore.GetDocument(ctx, sourceID); err != nil {
		return nil, err
	}

	source.MarkQueued()
	if err := o.sourceStore.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}
	if err := o.enqueue(ctx, sourceID); err != nil {
		return nil, err
	}
	return source, nil
}

func (o *IngestionOrchestrator) enqueue(ctx context.Context, sourceID string) error {
	if o.queue == nil {
		return nil
	}
	if err := o.queue.Enqueue(ctx, domain.NewIngestSourceTask(sourceID)); err != nil {
		return fmt.Errorf("failed to enqueue ingestion: %w", err)
	}
	return nil
}

// Ingest runs the pipeline for a source. On failure the source is marked
// failed and the returned error matches domain.ErrIngestionFailed with the
// failing stage attached.
func (o *IngestionOrchestrator) Ingest(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error) {
	startTime := time.Now()

	// Step 1: Take the per-source lock
	lockName := ingestLockName(sourceID)
	if err := o.acquire(ctx, lockName); err != nil {
		return nil, goerr.Wrap(err, "failed to lock source", goerr.V(domain.KeySourceID, sourceID))
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			o.logger.Warn("failed to release ingest lock", "source_id", sourceID, "error", err)
		}
	}()

	// Step 2: Mark processing
	source, err := o.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Status.IsSettled() {
		source.MarkQueued()
	}
	source.MarkProcessing()
	if err := o.sourceStore.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}

	o.logger.Info("starting ingestion", "source_id", sourceID, "type", source.Type)

	// Steps 3-5: Build the staged concept set
	generation := source.NextGeneration()
	concepts, err := o.stage(ctx, source, generation)
	if err != nil {
		return o.fail(ctx, source, startTime, err)
	}

	// Step 6: Flush
	if err := o.flush(ctx, source, generation, concepts); err != nil {
		return o.fail(ctx, source, startTime, err)
	}

	o.logger.Info("ingestion completed",
		"source_id", sourceID,
		"concepts", len(concepts),
		"duration_seconds", time.Since(startTime).Seconds(),
	)
	return source, nil
}

func ingestLockName(sourceID string) string {
	return "ingest:" + sourceID
}

// tryLock takes the source lock without waiting. A busy source yields
// ErrIngestionInProgress.
func (o *IngestionOrchestrator) tryLock(ctx context.Context, sourceID string) (func(), error) {
	name := ingestLockName(sourceID)
	ok, err := o.lock.Acquire(ctx, name, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock backend: %w", err)
	}
	if !ok {
		return nil, goerr.Wrap(domain.ErrIngestionInProgress, "source is being ingested", goerr.V(domain.KeySourceID, sourceID))
	}
	return func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			o.logger.Warn("failed to release ingest lock", "source_id", sourceID, "error", err)
		}
	}, nil
}

// acquire takes the lock, polling for up to lockWait while it is busy.
func (o *IngestionOrchestrator) acquire(ctx context.Context, name string) error {
	deadline := time.Now().Add(o.lockWait)
	for {
		ok, err := o.lock.Acquire(ctx, name, o.lockTTL)
		if err != nil {
			return fmt.Errorf("lock backend: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return domain.ErrIngestionInProgress
		}

		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// stage runs normalise, chunk, extract and embed without touching any store
// readers can see.
func (o *IngestionOrchestrator) stage(ctx context.Context, source *domain.KnowledgeSource, generation int64) ([]*domain.KnowledgeConcept, error) {
	doc, err := o.sourceStore.GetDocument(ctx, source.ID)
	if err != nil {
		return nil, stageError(domain.StageLoad, source.ID, err)
	}

	text := doc.Text
	if o.normaliser != nil {
		text = o.normaliser.Normalise(text)
	}

	chunks, err := o.chunker.Chunk(source.ID, text)
	if err != nil {
		return nil, stageError(domain.StageChunk, source.ID, err)
	}

	var drafts []domain.ConceptDraft
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, stageError(domain.StageExtract, source.ID, err)
		}
		found, err := o.extractor.Extract(chunk, source.Type)
		if err != nil {
			return nil, goerr.Wrap(stageError(domain.StageExtract, source.ID, err), "chunk extraction failed",
				goerr.V("chunk_index", chunk.Index))
		}
		drafts = append(drafts, found...)
	}
	if o.filter != nil {
		drafts = o.filter.Process(drafts)
	}

	o.logger.Debug("extracted drafts", "source_id", source.ID, "chunks", len(chunks), "drafts", len(drafts))

	vectors, err := o.embed(ctx, drafts)
	if err != nil {
		return nil, stageError(domain.StageEmbed, source.ID, err)
	}

	concepts := make([]*domain.KnowledgeConcept, len(drafts))
	for i, draft := range drafts {
		concepts[i] = domain.NewKnowledgeConcept(source.ID, generation, draft, vectors[i])
	}
	return concepts, nil
}

// embed vectorises drafts in batches, running up to embedConcurrency batches
// at once. The first failure cancels the rest.
func (o *IngestionOrchestrator) embed(ctx context.Context, drafts []domain.ConceptDraft) ([][]float32, error) {
	vectors := make([][]float32, len(drafts))
	if len(drafts) == 0 {
		return vectors, nil
	}

	svc := o.services.EmbeddingService()
	if svc == nil {
		return nil, goerr.Wrap(domain.ErrUnavailable, "no embedding service configured")
	}
	dims := o.index.Dimensions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.embedConcurrency)

	for start := 0; start < len(drafts); start += o.embedBatchSize {
		end := min(start+o.embedBatchSize, len(drafts))
		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, drafts[i].EmbeddingText())
		}

		g.Go(func() error {
			batch, err := svc.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embedding service returned %d vectors for %d texts", len(batch), len(texts))
			}
			for i, v := range batch {
				if len(v) != dims {
					return goerr.Wrap(domain.ErrInvalidInput, "embedding dimension mismatch",
						goerr.V("expected", dims), goerr.V("actual", len(v)))
				}
				vectors[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// flush makes the staged concepts current and marks the source processed.
// New rows carry a generation nobody reads yet. The index swap and the
// source commit then switch both read paths; if the commit cannot be saved
// the index is swapped back. Rows of older generations are removed last.
func (o *IngestionOrchestrator) flush(ctx context.Context, source *domain.KnowledgeSource, generation int64, concepts []*domain.KnowledgeConcept) error {
	stored, err := o.conceptStore.ListBySource(ctx, source.ID)
	if err != nil {
		return stageError(domain.StageStage, source.ID, err)
	}

	newIDs := make([]string, len(concepts))
	entries := make([]domain.VectorEntry, len(concepts))
	for i, c := range concepts {
		newIDs[i] = c.ID
		entries[i] = domain.VectorEntry{ConceptID: c.ID, SourceID: source.ID, Vector: c.Embedding}
	}

	if len(concepts) > 0 {
		if err := o.conceptStore.SaveBatch(ctx, concepts); err != nil {
			o.discard(ctx, source.ID, newIDs)
			return stageError(domain.StageStage, source.ID, err)
		}
	}

	// Last point at which cancellation rolls back.
	if err := ctx.Err(); err != nil {
		o.discard(ctx, source.ID, newIDs)
		return stageError(domain.StageIndex, source.ID, err)
	}

	if err := o.index.ReplaceSource(ctx, source.ID, entries); err != nil {
		o.discard(ctx, source.ID, newIDs)
		return stageError(domain.StageIndex, source.ID, err)
	}

	// The new entries are live; finish even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	committed := *source
	committed.Generation = generation
	committed.MarkProcessed(len(concepts))
	if err := o.sourceStore.Save(ctx, &committed); err != nil {
		o.restoreIndex(ctx, source, stored)
		o.discard(ctx, source.ID, newIDs)
		return stageError(domain.StageIndex, source.ID, err)
	}
	*source = committed

	staleIDs := make([]string, len(stored))
	for i, c := range stored {
		staleIDs[i] = c.ID
	}
	o.removeStale(ctx, source.ID, staleIDs)
	return nil
}

// restoreIndex puts the committed concept set back into the index after a
// commit that could not be saved.
func (o *IngestionOrchestrator) restoreIndex(ctx context.Context, source *domain.KnowledgeSource, stored []*domain.KnowledgeConcept) {
	var entries []domain.VectorEntry
	for _, c := range stored {
		if c.Generation == source.Generation && len(c.Embedding) > 0 {
			entries = append(entries, domain.VectorEntry{ConceptID: c.ID, SourceID: source.ID, Vector: c.Embedding})
		}
	}
	if err := o.index.ReplaceSource(ctx, source.ID, entries); err != nil {
		o.logger.Error("failed to restore index entries",
			"source_id", source.ID, "count", len(entries), "error", err)
	}
}

// removeStale deletes rows of superseded generations. They are already
// hidden from readers; rows that survive every attempt are picked up by the
// next ingestion of the source.
func (o *IngestionOrchestrator) removeStale(ctx context.Context, sourceID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	var err error
	for attempt := 1; attempt <= cleanupAttempts; attempt++ {
		if err = o.conceptStore.DeleteBatch(ctx, ids); err == nil {
			return
		}
		if attempt < cleanupAttempts {
			time.Sleep(time.Duration(attempt) * cleanupBackoff)
		}
	}
	o.logger.Error("failed to delete superseded concepts",
		"source_id", sourceID, "count", len(ids), "attempts", cleanupAttempts, "error", err)
}

// discard removes staged concept rows after a failed flush.
func (o *IngestionOrchestrator) discard(ctx context.Context, sourceID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := o.conceptStore.DeleteBatch(context.WithoutCancel(ctx), ids); err != nil {
		o.logger.Error("failed to discard staged concepts",
			"source_id", sourceID, "count", len(ids), "error", err)
	}
}

// fail marks the source failed and returns the error.
func (o *IngestionOrchestrator) fail(ctx context.Context, source *domain.KnowledgeSource, startTime time.Time, err error) (*domain.KnowledgeSource, error) {
	detail := domain.ErrorDetail(err)
	o.logger.Error("ingestion failed",
		"source_id", source.ID,
		"stage", detail[domain.KeyStage],
		"duration_seconds", time.Since(startTime).Seconds(),
		"error", err,
	)

	source.MarkFailed(err.Error())
	if saveErr := o.sourceStore.Save(context.WithoutCancel(ctx), source); saveErr != nil {
		o.logger.Warn("failed to mark source failed", "source_id", source.ID, "error", saveErr)
	}
	return source, err
}

func stageError(stage, sourceID string, err error) error {
	return goerr.Wrap(fmt.Errorf("%w: %w", domain.ErrIngestionFailed, err), stage+" stage failed",
		goerr.V(domain.KeyStage, stage), goerr.V(domain.KeySourceID, sourceID))
}

// Get retrieves a source and its processing status
func (o *IngestionOrchestrator) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	return o.sourceStore.Get(ctx, id)
}

// List retrieves all sources
func (o *IngestionOrchestrator) List(ctx context.Context) ([]*domain.KnowledgeSource, error) {
	return o.sourceStore.List(ctx)
}

// Concepts lists the committed concept set of a source. Rows staged by a
// run in flight or left from a superseded run are filtered out by
// generation. The source is read on both sides of the listing so that a
// commit landing in between is noticed and the listing repeated.
func (o *IngestionOrchestrator) Concepts(ctx context.Context, sourceID string) ([]*domain.KnowledgeConcept, error) {
	source, err := o.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	var current []*domain.KnowledgeConcept
	for range listAttempts {
		stored, err := o.conceptStore.ListBySource(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		current = current[:0]
		for _, c := range stored {
			if c.Generation == source.Generation {
				current = append(current, c)
			}
		}

		after, err := o.sourceStore.Get(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		if after.Generation == source.Generation {
			break
		}
		source = after
	}
	return current, nil
}

// Delete removes a source with its index entries, concepts and document.
// Index entries go first so readers stop seeing the source immediately.
func (o *IngestionOrchestrator) Delete(ctx context.Context, id string) error {
	release, err := o.tryLock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if _, err := o.sourceStore.Get(ctx, id); err != nil {
		return err
	}
	if err := o.index.DeleteSource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete index entries: %w", err)
	}
	if err := o.conceptStore.DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete concepts: %w", err)
	}
	if err := o.sourceStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	o.logger.Info("source deleted", "source_id", id)
	return nil
}
