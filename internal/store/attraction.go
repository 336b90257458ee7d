package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrAttractionNotFound = errors.New("attraction not found")

// Attraction is a bookable sight. Images and Tags hold JSON arrays as
// serialized by the admin console.
type Attraction struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Location    string `gorm:"type:varchar(200);default:''" json:"location"`
	Province    string `gorm:"type:varchar(50);default:''" json:"province"`
	City        string `gorm:"type:varchar(50);default:''" json:"city"`
	District    string `gorm:"type:varchar(50);default:''" json:"district"`
	Address     string `gorm:"type:varchar(200);default:''" json:"address"`
	Description string `gorm:"type:text" json:"description"`
	Images      string `gorm:"type:text" json:"images"`
	VideoURL    string `gorm:"type:varchar(500);default:''" json:"video_url"`
	OpenTime    string `gorm:"type:varchar(100);default:''" json:"open_time"`

	ContactPhone string  `gorm:"type:varchar(20);default:''" json:"contact_phone"`
	Longitude    float64 `gorm:"type:decimal(10,7)" json:"longitude"`
	Latitude     float64 `gorm:"type:decimal(10,7)" json:"latitude"`

	TicketPrice float64 `gorm:"type:decimal(10,2)" json:"ticket_price"`
	TicketStock int     `gorm:"default:0" json:"ticket_stock"`
	ValidPeriod string  `gorm:"type:varchar(100);default:''" json:"valid_period"`

	Status int8   `gorm:"default:1;index" json:"status"`
	Rating string `gorm:"type:varchar(10);default:''" json:"rating"`
	Tags   string `gorm:"type:text" json:"tags"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Attraction) TableName() string {
	return "attractions"
}

// Attractions is the data access layer for sights.
type Attractions struct {
	db *gorm.DB
}

func NewAttractions(db *gorm.DB) *Attractions {
	return &Attractions{db: db}
}

func (m *Attractions) FindByID(ctx context.Context, id int64) (*Attraction, error) {
	var attraction Attraction
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&attraction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttractionNotFound
		}
		return nil, err
	}
	return &attraction, nil
}

// ListPublished returns online attractions, newest first.
func (m *Attractions) ListPublished(ctx context.Context, limit int) ([]Attraction, error) {
	var attractions []Attraction
	err := m.db.WithContext(ctx).
		Where("status = ?", 1).
		Order("created_at DESC").
		Limit(limit).
		Find(&attractions).Error
	return attractions, err
}
