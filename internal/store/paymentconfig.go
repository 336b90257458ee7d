package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrPaymentConfigNotFound = errors.New("payment config not found")

// PaymentConfig holds the merchant credentials for one payment channel.
type PaymentConfig struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	AppID     string `gorm:"type:varchar(64);uniqueIndex;not null" json:"app_id"`
	MchID     string `gorm:"type:varchar(64);not null" json:"mch_id"`
	APIKey    string `gorm:"type:varchar(128);not null" json:"-"`
	NotifyURL string `gorm:"type:varchar(500);default:''" json:"notify_url"`

	Status      int8   `gorm:"default:1" json:"status"`
	Description string `gorm:"type:varchar(200);default:''" json:"description"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentConfig) TableName() string {
	return "payment_configs"
}

// PaymentConfigs is the data access layer for payment channel credentials.
type PaymentConfigs struct {
	db *gorm.DB
}

func NewPaymentConfigs(db *gorm.DB) *PaymentConfigs {
	return &PaymentConfigs{db: db}
}

func (m *PaymentConfigs) FindByAppID(ctx context.Context, appID string) (*PaymentConfig, error) {
	var entry PaymentConfig
	err := m.db.WithContext(ctx).
		Where("app_id = ? AND status = ?", appID, 1).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentConfigNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// AppIDs returns the app ids of every enabled payment channel.
func (m *PaymentConfigs) AppIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := m.db.WithContext(ctx).
		Model(&PaymentConfig{}).
		Where("status = ?", 1).
		Pluck("app_id", &ids).Error
	return ids, err
}
