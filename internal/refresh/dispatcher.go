package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tripvista/travel-platform/internal/cache"
	"github.com/tripvista/travel-platform/internal/task"
)

// AsyncThreshold is the item count above which a refresh is handed to the
// pool. At or below it, the refresh runs synchronously on the caller.
const AsyncThreshold = 100

// ErrNotRefreshable is returned for cache types that have no refresh source.
// Write-through caches (tokens, SMS codes, sessions, view windows) are only
// ever populated by their owning flow.
var ErrNotRefreshable = errors.New("cache type has no refresh source")

// Dispatcher routes cache refresh requests between synchronous execution and
// the worker pool, and drives each refresh through its task record.
type Dispatcher struct {
	registry *cache.Registry
	tracker  *task.Tracker
	pool     *Pool
	sources  map[cache.Type]Source
}

func NewDispatcher(registry *cache.Registry, tracker *task.Tracker, pool *Pool, sources map[cache.Type]Source) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		tracker:  tracker,
		pool:     pool,
		sources:  sources,
	}
}

// Refresh reloads entries of the given cache type and returns the id of the
// task tracking it. Small refreshes (at most AsyncThreshold units) complete
// before Refresh returns; larger ones are queued and tracked through the
// returned task id.
func (d *Dispatcher) Refresh(ctx context.Context, t cache.Type, ids []int64) (string, error) {
	source, ok := d.sources[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotRefreshable, t)
	}

	units, err := source.Plan(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("planning %q refresh: %w", t, err)
	}

	taskID, err := d.tracker.Create(ctx, string(t), len(units))
	if err != nil {
		return "", err
	}

	if len(units) <= AsyncThreshold {
		d.run(ctx, t, taskID, units)
		return taskID, nil
	}

	log.Info().
		Str("task_id", taskID).
		Str("cache_type", string(t)).
		Int("items", len(units)).
		Msg("cache refresh dispatched to pool")

	// the job must outlive the submitting request
	jobCtx := context.WithoutCancel(ctx)
	d.pool.Submit(func() {
		d.run(jobCtx, t, taskID, units)
	})

	return taskID, nil
}

// run executes every unit of one refresh, recording per-item outcomes and
// finalizing the task from its committed counters.
func (d *Dispatcher) run(ctx context.Context, t cache.Type, taskID string, units []Unit) {
	d.tracker.MarkRunning(ctx, taskID)

	for _, unit := range units {
		err := d.runUnit(ctx, t, unit)
		if err != nil {
			log.Warn().Err(err).
				Str("task_id", taskID).
				Str("cache_type", string(t)).
				Str("key", unit.Key).
				Msg("refresh item failed")
		}
		d.tracker.RecordProgress(ctx, taskID, err == nil)
	}

	d.tracker.Complete(ctx, taskID)
}

// runUnit fetches one fresh value and writes it through the registry. A
// panicking fetch surfaces as an error so the item is counted as a failure
// like any other.
func (d *Dispatcher) runUnit(ctx context.Context, t cache.Type, unit Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refreshing %s/%s panicked: %v", t, unit.Key, r)
		}
	}()

	value, err := unit.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching %s/%s: %w", t, unit.Key, err)
	}

	return d.registry.Set(ctx, t, unit.Key, value)
}

// WarmUp preloads the home and mini-program configuration caches. Warm-up
// failures are logged, not fatal: the caches fill lazily on first use.
func (d *Dispatcher) WarmUp(ctx context.Context) {
	for _, t := range []cache.Type{cache.TypeHome, cache.TypeMiniprogram} {
		if _, ok := d.sources[t]; !ok {
			continue
		}
		if _, err := d.Refresh(ctx, t, nil); err != nil {
			log.Warn().Err(err).Str("cache_type", string(t)).Msg("cache warm-up failed")
		}
	}
}
