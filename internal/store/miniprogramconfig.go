package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrConfigNotFound = errors.New("config entry not found")

// MiniProgramConfig is one keyed configuration entry served to the
// mini-program client (share copy, banners, feature switches).
type MiniProgramConfig struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ConfigKey   string `gorm:"type:varchar(100);uniqueIndex;not null" json:"config_key"`
	ConfigValue string `gorm:"type:text" json:"config_value"`
	ConfigType  string `gorm:"type:varchar(20);default:''" json:"config_type"`
	Description string `gorm:"type:varchar(200);default:''" json:"description"`
	Sort        int    `gorm:"default:0" json:"sort"`
	Status      int8   `gorm:"default:1" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MiniProgramConfig) TableName() string {
	return "mini_program_configs"
}

// Configs is the data access layer for mini-program configuration entries.
type Configs struct {
	db *gorm.DB
}

func NewConfigs(db *gorm.DB) *Configs {
	return &Configs{db: db}
}

func (m *Configs) FindByKey(ctx context.Context, key string) (*MiniProgramConfig, error) {
	var entry MiniProgramConfig
	err := m.db.WithContext(ctx).
		Where("config_key = ? AND status = ?", key, 1).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Keys returns the keys of every enabled entry, in display order.
func (m *Configs) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := m.db.WithContext(ctx).
		Model(&MiniProgramConfig{}).
		Where("status = ?", 1).
		Order("sort ASC").
		Pluck("config_key", &keys).Error
	return keys, err
}

// ListEnabled returns every enabled entry, in display order.
func (m *Configs) ListEnabled(ctx context.Context) ([]MiniProgramConfig, error) {
	var entries []MiniProgramConfig
	err := m.db.WithContext(ctx).
		Where("status = ?", 1).
		Order("sort ASC").
		Find(&entries).Error
	return entries, err
}
