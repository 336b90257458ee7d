package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a Store double backed by a mutex-guarded map, mirroring the
// row-level atomic update semantics of the MySQL store.
type memoryStore struct {
	mu    sync.Mutex
	tasks map[string]*CacheRefreshTask
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tasks: make(map[string]*CacheRefreshTask)}
}

func (s *memoryStore) Create(ctx context.Context, task *CacheRefreshTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	copied.CreatedAt = time.Now()
	s.tasks[task.TaskID] = &copied
	return nil
}

func (s *memoryStore) FindByTaskID(ctx context.Context, taskID string) (*CacheRefreshTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *memoryStore) MarkRunning(ctx context.Context, taskID string, startTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Status != StatusPending {
		return false, nil
	}
	task.Status = StatusRunning
	task.StartTime = &startTime
	return true, nil
}

func (s *memoryStore) IncrementProgress(ctx context.Context, taskID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.ProcessedCount++
	if success {
		task.SuccessCount++
	} else {
		task.FailureCount++
	}
	return nil
}

func (s *memoryStore) Finalize(ctx context.Context, taskID, status, errorMessage string, endTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Status != StatusRunning {
		return false, nil
	}
	task.Status = status
	task.ErrorMessage = errorMessage
	task.EndTime = &endTime
	return true, nil
}

func (s *memoryStore) ListRecent(ctx context.Context, limit int) ([]CacheRefreshTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CacheRefreshTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *task)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestTrackerCreate_ReturnsOpaqueID(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	taskID, err := tracker.Create(ctx, "attraction", 3)
	require.NoError(t, err)
	assert.Contains(t, taskID, "cache-refresh-")

	status, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)
	assert.Equal(t, 3, status.TotalCount)
	assert.Zero(t, status.ProcessedCount)
}

func TestTrackerProgress_CounterInvariant(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	taskID, err := tracker.Create(ctx, "product", 5)
	require.NoError(t, err)
	tracker.MarkRunning(ctx, taskID)

	outcomes := []bool{true, false, true, true, false}
	for _, ok := range outcomes {
		tracker.RecordProgress(ctx, taskID, ok)

		status, err := tracker.GetStatus(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, status.ProcessedCount, status.SuccessCount+status.FailureCount)
	}

	status, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, 5, status.ProcessedCount)
	assert.Equal(t, 3, status.SuccessCount)
	assert.Equal(t, 2, status.FailureCount)
}

func TestTrackerComplete_AllSucceeded(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	taskID, err := tracker.Create(ctx, "article", 2)
	require.NoError(t, err)
	tracker.MarkRunning(ctx, taskID)
	tracker.RecordProgress(ctx, taskID, true)
	tracker.RecordProgress(ctx, taskID, true)
	tracker.Complete(ctx, taskID)

	status, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Empty(t, status.ErrorMessage)
	assert.NotNil(t, status.EndTime)
}

func TestTrackerComplete_PartialFailure(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	// create(total=3), 2 successes, 1 failure -> FAILED with summary
	taskID, err := tracker.Create(ctx, "attraction", 3)
	require.NoError(t, err)
	tracker.MarkRunning(ctx, taskID)
	tracker.RecordProgress(ctx, taskID, true)
	tracker.RecordProgress(ctx, taskID, true)
	tracker.RecordProgress(ctx, taskID, false)
	tracker.Complete(ctx, taskID)

	status, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Equal(t, 3, status.ProcessedCount)
	assert.Equal(t, 2, status.SuccessCount)
	assert.Equal(t, 1, status.FailureCount)
	assert.Contains(t, status.ErrorMessage, "1 of 3")
}

func TestTrackerComplete_Idempotent(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	taskID, err := tracker.Create(ctx, "home", 1)
	require.NoError(t, err)
	tracker.MarkRunning(ctx, taskID)
	tracker.RecordProgress(ctx, taskID, true)

	tracker.Complete(ctx, taskID)
	first, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)

	// second completion must not corrupt state
	tracker.Complete(ctx, taskID)
	second, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.SuccessCount, second.SuccessCount)
	assert.Equal(t, first.FailureCount, second.FailureCount)
}

func TestTrackerMarkRunning_MissingTask(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	// logged, not fatal
	tracker.MarkRunning(ctx, "cache-refresh-nonexistent")
	tracker.RecordProgress(ctx, "cache-refresh-nonexistent", true)

	_, err := tracker.GetStatus(ctx, "cache-refresh-nonexistent")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTrackerProgress_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryStore())

	taskID, err := tracker.Create(ctx, "product", 100)
	require.NoError(t, err)
	tracker.MarkRunning(ctx, taskID)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.RecordProgress(ctx, taskID, n%4 != 0)
		}(i)
	}
	wg.Wait()

	status, err := tracker.GetStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, 100, status.ProcessedCount)
	assert.Equal(t, status.ProcessedCount, status.SuccessCount+status.FailureCount)
	assert.Equal(t, 25, status.FailureCount)
}
