package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/tripvista/travel-platform/internal/task"
)

// TaskStore is an in-memory task.Store double backed by a mutex-guarded map.
// It mirrors the row-level update semantics of the MySQL store: guarded state
// transitions and atomic counter increments.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*task.CacheRefreshTask
	order []string
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*task.CacheRefreshTask)}
}

func (s *TaskStore) Create(_ context.Context, record *task.CacheRefreshTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	copied.CreatedAt = time.Now()
	s.tasks[record.TaskID] = &copied
	s.order = append(s.order, record.TaskID)
	return nil
}

func (s *TaskStore) FindByTaskID(_ context.Context, taskID string) (*task.CacheRefreshTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *TaskStore) MarkRunning(_ context.Context, taskID string, startTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok || record.Status != task.StatusPending {
		return false, nil
	}
	record.Status = task.StatusRunning
	record.StartTime = &startTime
	return true, nil
}

func (s *TaskStore) IncrementProgress(_ context.Context, taskID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return task.ErrTaskNotFound
	}
	record.ProcessedCount++
	if success {
		record.SuccessCount++
	} else {
		record.FailureCount++
	}
	return nil
}

func (s *TaskStore) Finalize(_ context.Context, taskID, status, errorMessage string, endTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok || record.Status != task.StatusRunning {
		return false, nil
	}
	record.Status = status
	record.ErrorMessage = errorMessage
	record.EndTime = &endTime
	return true, nil
}

func (s *TaskStore) ListRecent(_ context.Context, limit int) ([]task.CacheRefreshTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.CacheRefreshTask, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.tasks[s.order[i]])
	}
	return out, nil
}
