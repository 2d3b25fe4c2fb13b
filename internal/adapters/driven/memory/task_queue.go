package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*TaskQueue)(nil)

var errQueueClosed = errors.New("task queue closed")

// pollInterval bounds how long a waiting dequeue sleeps before rechecking
// scheduled tasks.
const pollInterval = 50 * time.Millisecond

// TaskQueue is an in-process task queue with the same retry semantics as the
// Redis and PostgreSQL queues. Tasks do not survive a restart.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	order  []string // enqueue order of tasks that are not yet settled
	notify chan struct{}
	closed bool
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make(map[string]*domain.Task),
		notify: make(chan struct{}, 1),
	}
}

func (q *TaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	cp := *task
	if _, exists := q.tasks[task.ID]; !exists {
		q.order = append(q.order, task.ID)
	}
	q.tasks[task.ID] = &cp
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *TaskQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *TaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	deadline := time.Now().Add(timeout)

	for {
		if task := q.claim(); task != nil {
			return task, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		if wait > pollInterval {
			wait = pollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// claim marks the oldest ready task as processing and returns a copy.
func (q *TaskQueue) claim() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		task := q.tasks[id]
		if task.IsReady() {
			task.MarkProcessing()
			cp := *task
			return &cp
		}
	}
	return nil
}

func (q *TaskQueue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	q.settle(taskID)
	return nil
}

func (q *TaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	task, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
		q.settle(taskID)
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

// settle removes a finished task from the dispatch order. Callers hold the lock.
func (q *TaskQueue) settle(taskID string) {
	for i, id := range q.order {
		if id == taskID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *TaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (q *TaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, task := range q.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (q *TaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (q *TaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
