// Package worker drains the task queue and runs source ingestion in the
// background, so that submitting a document never waits on the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// ErrNotRunning is returned by Ping while the worker is stopped
var ErrNotRunning = errors.New("worker is not running")

// Ingester runs the ingestion pipeline for one source.
type Ingester interface {
	Ingest(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error)
}

// Worker runs a fixed number of goroutines, each dequeuing one task at a
// time and settling it on the queue once the ingester returns.
type Worker struct {
	taskQueue driven.TaskQueue
	ingester  Ingester
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration
	errorBackoff   time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingester       Ingester
	Logger         *slog.Logger
	Concurrency    int           // goroutines pulling from the queue
	DequeueTimeout time.Duration // how long one dequeue blocks before the loop checks for shutdown
	ErrorBackoff   time.Duration // pause after a queue error
}

// NewWorker creates a stopped worker. Zero config values get defaults.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		taskQueue:      cfg.TaskQueue,
		ingester:       cfg.Ingester,
		logger:         cfg.Logger,
		concurrency:    cfg.Concurrency,
		dequeueTimeout: cfg.DequeueTimeout,
		errorBackoff:   cfg.ErrorBackoff,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.dequeueTimeout <= 0 {
		w.dequeueTimeout = 5 * time.Second
	}
	if w.errorBackoff <= 0 {
		w.errorBackoff = time.Second
	}
	return w
}

// Start launches the goroutines and returns immediately. They run until
// Stop is called or ctx is cancelled. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("worker starting", "concurrency", w.concurrency, "dequeue_timeout", w.dequeueTimeout)

	var wg sync.WaitGroup
	wg.Add(w.concurrency)
	for i := range w.concurrency {
		go func() {
			defer wg.Done()
			w.processLoop(ctx, i)
		}()
	}
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(w.doneCh)
	return nil
}

// Stop signals the goroutines and waits for them. Ingestions in flight run
// to completion and are settled before Stop returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.Info("worker stopped")
}

// Wait blocks until every goroutine has exited
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Running reports whether Start was called without a matching Stop
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Ping fails while the worker is stopped or its queue does not answer.
// It lets the readiness endpoint cover the worker in combined mode.
func (w *Worker) Ping(ctx context.Context) error {
	if !w.Running() {
		return ErrNotRunning
	}
	if err := w.taskQueue.Ping(ctx); err != nil {
		return fmt.Errorf("task queue: %w", err)
	}
	return nil
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)

	for !w.stopping(ctx) {
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			logger.Error("failed to dequeue task", "error", err)
			w.pause(ctx)
		case task != nil:
			w.processTask(ctx, task, logger)
		}
	}
}

func (w *Worker) pause(ctx context.Context) {
	timer := time.NewTimer(w.errorBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}

// disposition is what happens to a task on the queue after one attempt
type disposition int

const (
	settleDone  disposition = iota // ack: succeeded
	settleFinal                    // ack: failed, and the outcome is recorded on the source
	settleRetry                    // nack: the queue reschedules or fails it
)

// dispositionFor decides whether a failed ingestion goes back on the queue.
// A busy source or an unavailable provider is retried; a pipeline failure,
// a deleted source or a malformed task is not.
func dispositionFor(err error) disposition {
	switch {
	case err == nil:
		return settleDone
	case errors.Is(err, domain.ErrIngestionInProgress),
		errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrTransient):
		return settleRetry
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIngestionFailed):
		return settleFinal
	default:
		return settleRetry
	}
}

// processTask runs one task and settles it. Settlement uses a context that
// survives shutdown so the queue never keeps a finished task in flight.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "source_id", task.SourceID(), "attempt", task.Attempts)
	start := time.Now()

	err := task.Validate()
	if err == nil {
		_, err = w.ingester.Ingest(ctx, task.SourceID())
	}

	elapsed := time.Since(start)
	settleCtx := context.WithoutCancel(ctx)

	switch dispositionFor(err) {
	case settleDone:
		logger.Info("ingestion task completed", "duration", elapsed)
		if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
			logger.Error("failed to ack task", "ack_error", ackErr)
		}
	case settleFinal:
		logger.Warn("ingestion task failed permanently", "duration", elapsed, "error", err)
		if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
			logger.Error("failed to ack task", "ack_error", ackErr)
		}
	case settleRetry:
		logger.Warn("ingestion task will be retried", "duration", elapsed, "error", err)
		if nackErr := w.taskQueue.Nack(settleCtx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
	}
}
