package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// GenerateID returns a random UUID string for new entities and tasks
func GenerateID() string {
	return uuid.NewString()
}

// TaskType names the kind of background work a Task carries
type TaskType string

// TaskTypeIngestSource runs the ingestion pipeline for one source
const TaskTypeIngestSource TaskType = "ingest_source"

// PayloadSourceID is the payload key holding the source to ingest. Tasks
// never carry document text; the worker loads it from the source store.
const PayloadSourceID = "source_id"

// TaskStatus is the queue-side state of a task. It is independent of the
// ProcessingStatus of the source the task refers to.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Queue retry policy
const (
	DefaultTaskMaxAttempts = 5
	taskRetryBase          = time.Second
	taskRetryCap           = time.Minute
)

// Task is a queued unit of background work
type Task struct {
	ID      string            `json:"id"`
	Type    TaskType          `json:"type"`
	Payload map[string]string `json:"payload"`

	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"` // dequeues so far, including the current one
	MaxAttempts int        `json:"max_attempts"`
	Error       string     `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"` // not handed out before this instant
}

// NewIngestSourceTask creates a pending task that ingests sourceID once dequeued
func NewIngestSourceTask(sourceID string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         TaskTypeIngestSource,
		Payload:      map[string]string{PayloadSourceID: sourceID},
		Status:       TaskStatusPending,
		MaxAttempts:  DefaultTaskMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// SourceID returns the source an ingest task refers to, or ""
func (t *Task) SourceID() string {
	return t.Payload[PayloadSourceID]
}

// Validate rejects tasks a worker cannot run: unknown types and ingest
// tasks without a source.
func (t *Task) Validate() error {
	switch t.Type {
	case TaskTypeIngestSource:
		if t.SourceID() == "" {
			return goerr.Wrap(ErrInvalidInput, "ingest task has no source id",
				goerr.V("task_id", t.ID), goerr.V(KeyField, PayloadSourceID))
		}
		return nil
	default:
		return goerr.Wrap(ErrInvalidInput, "unknown task type",
			goerr.V("task_id", t.ID), goerr.V("type", string(t.Type)))
	}
}

// CanRetry reports whether another attempt is allowed
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady reports whether a pending task is due
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing records a dequeue; it counts as one attempt
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.Attempts++
	t.StartedAt = &now
	t.UpdatedAt = now
}

// MarkCompleted settles the task successfully and clears the last error
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Error = ""
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkFailed settles the task for good
func (t *Task) MarkFailed(reason string) {
	t.Status = TaskStatusFailed
	t.Error = reason
	t.UpdatedAt = time.Now()
}

// Retry puts the task back to pending, due after RetryDelay(Attempts)
func (t *Task) Retry(reason string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.Error = reason
	t.UpdatedAt = now
	t.ScheduledFor = now.Add(RetryDelay(t.Attempts))
}

// RetryDelay is the wait before the next attempt after attempts tries:
// 2s, 4s, 8s and so on, capped at one minute.
func RetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= 6 {
		return taskRetryCap
	}
	return min(taskRetryBase<<attempts, taskRetryCap)
}
