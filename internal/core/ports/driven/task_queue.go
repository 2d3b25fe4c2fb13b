package driven

import (
	"context"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// TaskQueue carries ingestion tasks from the API to the workers. A task is
// handed to one worker at a time and stays in flight until that worker
// settles it with Ack or Nack.
type TaskQueue interface {
	// Enqueue stores a pending task. It is not handed out before ScheduledFor.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims a due task, counting one attempt. It returns
	// nil, nil when nothing became due within timeout.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Ack settles a claimed task as completed
	Ack(ctx context.Context, taskID string) error

	// Nack hands a claimed task back. It is rescheduled via Task.Retry while
	// attempts remain and marked failed afterwards.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns the task or domain.ErrNotFound
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*QueueStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// QueueStats counts tasks per status
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}
