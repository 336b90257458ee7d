package task

import (
	"errors"
	"time"
)

// Task lifecycle statuses. Transitions are monotonic:
// PENDING -> RUNNING -> {COMPLETED, FAILED}. Terminal states are final.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

var (
	// ErrTaskNotFound indicates no task exists for the given task id.
	ErrTaskNotFound = errors.New("cache refresh task not found")
)

// CacheRefreshTask is the persisted record of one refresh job. Records are
// never deleted; they form the audit trail of refresh activity.
//
// Invariant: ProcessedCount == SuccessCount + FailureCount after every
// progress update. TotalCount is fixed at creation.
type CacheRefreshTask struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID string `gorm:"type:varchar(64);uniqueIndex:uk_task_id;not null" json:"task_id"`

	CacheType string `gorm:"type:varchar(32);not null;index:idx_cache_type" json:"cache_type"`
	Status    string `gorm:"type:varchar(16);not null;default:PENDING;index:idx_status" json:"status"`

	TotalCount     int `gorm:"not null;default:0" json:"total_count"`
	ProcessedCount int `gorm:"not null;default:0" json:"processed_count"`
	SuccessCount   int `gorm:"not null;default:0" json:"success_count"`
	FailureCount   int `gorm:"not null;default:0" json:"failure_count"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CacheRefreshTask) TableName() string {
	return "cache_refresh_tasks"
}

// Terminal reports whether the task has reached a final state.
func (t *CacheRefreshTask) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
