package task

import (
	"context"
	"time"
)

// Store is the persistence collaborator for refresh task records. The
// persisted row is the single source of truth for task state: no in-memory
// copy is kept, so concurrent workers and pollers always observe the same
// committed progress.
type Store interface {
	// Create inserts a new task record.
	Create(ctx context.Context, task *CacheRefreshTask) error

	// FindByTaskID returns the task for the external task id, or
	// ErrTaskNotFound.
	FindByTaskID(ctx context.Context, taskID string) (*CacheRefreshTask, error)

	// MarkRunning transitions PENDING -> RUNNING and sets the start time.
	// Returns false if the task does not exist or is not PENDING.
	MarkRunning(ctx context.Context, taskID string, startTime time.Time) (bool, error)

	// IncrementProgress atomically bumps the processed counter plus either
	// the success or failure counter. The increment must happen at the
	// storage layer (no read-modify-write) so concurrent workers never lose
	// updates. Returns ErrTaskNotFound if no row matched.
	IncrementProgress(ctx context.Context, taskID string, success bool) error

	// Finalize transitions RUNNING -> status (COMPLETED or FAILED), setting
	// the end time and error message. Returns false if the task does not
	// exist or is already terminal, which makes finalization idempotent.
	Finalize(ctx context.Context, taskID, status, errorMessage string, endTime time.Time) (bool, error)

	// ListRecent returns the most recently created tasks.
	ListRecent(ctx context.Context, limit int) ([]CacheRefreshTask, error)
}
