package task

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormStore persists task records in MySQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, task *CacheRefreshTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *GormStore) FindByTaskID(ctx context.Context, taskID string) (*CacheRefreshTask, error) {
	var task CacheRefreshTask
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *GormStore) MarkRunning(ctx context.Context, taskID string, startTime time.Time) (bool, error) {
	tx := s.db.WithContext(ctx).
		Model(&CacheRefreshTask{}).
		Where("task_id = ? AND status = ?", taskID, StatusPending).
		Updates(map[string]any{
			"status":     StatusRunning,
			"start_time": startTime,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) IncrementProgress(ctx context.Context, taskID string, success bool) error {
	updates := map[string]any{
		"processed_count": gorm.Expr("processed_count + 1"),
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}

	tx := s.db.WithContext(ctx).
		Model(&CacheRefreshTask{}).
		Where("task_id = ?", taskID).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *GormStore) Finalize(ctx context.Context, taskID, status, errorMessage string, endTime time.Time) (bool, error) {
	tx := s.db.WithContext(ctx).
		Model(&CacheRefreshTask{}).
		Where("task_id = ? AND status = ?", taskID, StatusRunning).
		Updates(map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"end_time":      endTime,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) ListRecent(ctx context.Context, limit int) ([]CacheRefreshTask, error) {
	var tasks []CacheRefreshTask
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}
