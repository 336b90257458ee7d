package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Tracker manages the lifecycle of cache refresh tasks. It is a thin layer
// over the Store: counters live only in the persisted row.
//
// A worker crash mid-run leaves its task RUNNING forever; there is no lease
// or heartbeat recovery. Pollers should treat a long-RUNNING task as suspect.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Create allocates a new PENDING task and returns its external task id. The
// id is an opaque identifier, never the database primary key.
func (t *Tracker) Create(ctx context.Context, cacheType string, totalCount int) (string, error) {
	taskID := "cache-refresh-" + uuid.NewString()

	if totalCount < 0 {
		totalCount = 0
	}

	record := &CacheRefreshTask{
		TaskID:     taskID,
		CacheType:  cacheType,
		Status:     StatusPending,
		TotalCount: totalCount,
	}

	if err := t.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("creating refresh task for %q: %w", cacheType, err)
	}

	log.Info().
		Str("task_id", taskID).
		Str("cache_type", cacheType).
		Int("total", record.TotalCount).
		Msg("cache refresh task created")

	return taskID, nil
}

// MarkRunning transitions the task to RUNNING. A missing or already-started
// task is a recoverable inconsistency: it is logged and otherwise ignored.
func (t *Tracker) MarkRunning(ctx context.Context, taskID string) {
	updated, err := t.store.MarkRunning(ctx, taskID, time.Now())
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("marking task running failed")
		return
	}
	if !updated {
		log.Warn().Str("task_id", taskID).Msg("task missing or not pending; run state unchanged")
	}
}

// RecordProgress registers the outcome of one refreshed item. Deduplication
// is the caller's responsibility: calling twice for the same item counts it
// twice.
func (t *Tracker) RecordProgress(ctx context.Context, taskID string, success bool) {
	err := t.store.IncrementProgress(ctx, taskID, success)
	if err != nil {
		log.Warn().Err(err).
			Str("task_id", taskID).
			Bool("success", success).
			Msg("recording task progress failed")
	}
}

// Complete finalizes the task from its committed counters: COMPLETED when
// every item succeeded, FAILED otherwise. Calling Complete on an already
// terminal task is a no-op.
func (t *Tracker) Complete(ctx context.Context, taskID string) {
	record, err := t.store.FindByTaskID(ctx, taskID)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("completing task: lookup failed")
		return
	}
	if record.Terminal() {
		return
	}

	status := StatusCompleted
	message := ""
	if record.FailureCount > 0 {
		status = StatusFailed
		message = fmt.Sprintf("%d of %d items failed to refresh", record.FailureCount, record.TotalCount)
	}

	updated, err := t.store.Finalize(ctx, taskID, status, message, time.Now())
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("finalizing task failed")
		return
	}
	if !updated {
		// lost the race with another finalizer; the first writer wins
		log.Warn().Str("task_id", taskID).Msg("task already finalized")
		return
	}

	log.Info().
		Str("task_id", taskID).
		Str("status", status).
		Int("success", record.SuccessCount).
		Int("failure", record.FailureCount).
		Msg("cache refresh task finished")
}

// Fail force-finalizes a task that could not run at all, e.g. when the
// backing data set could not be loaded.
func (t *Tracker) Fail(ctx context.Context, taskID, message string) {
	updated, err := t.store.Finalize(ctx, taskID, StatusFailed, message, time.Now())
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("failing task: update failed")
		return
	}
	if !updated {
		log.Warn().Str("task_id", taskID).Msg("failing task: task missing or already terminal")
	}
}

// GetStatus returns the latest committed task snapshot, or ErrTaskNotFound.
func (t *Tracker) GetStatus(ctx context.Context, taskID string) (*CacheRefreshTask, error) {
	return t.store.FindByTaskID(ctx, taskID)
}

// ListRecent returns the most recently created tasks, newest first.
func (t *Tracker) ListRecent(ctx context.Context, limit int) ([]CacheRefreshTask, error) {
	if limit <= 0 {
		limit = 20
	}
	return t.store.ListRecent(ctx, limit)
}
