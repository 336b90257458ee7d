package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

// Product is a purchasable travel product. Images and Specifications hold
// JSON as serialized by the admin console.
type Product struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"type:varchar(100);not null" json:"name"`
	Code       string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	CategoryID int64  `gorm:"index" json:"category_id"`

	Price         float64 `gorm:"type:decimal(10,2)" json:"price"`
	OriginalPrice float64 `gorm:"type:decimal(10,2)" json:"original_price"`
	Stock         int     `gorm:"default:0" json:"stock"`
	Sales         int     `gorm:"default:0" json:"sales"`

	Description    string `gorm:"type:text" json:"description"`
	Images         string `gorm:"type:text" json:"images"`
	Specifications string `gorm:"type:text" json:"specifications"`
	H5Link         string `gorm:"type:varchar(500);default:''" json:"h5_link"`

	Status int8 `gorm:"default:1;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Products is the data access layer for travel products.
type Products struct {
	db *gorm.DB
}

func NewProducts(db *gorm.DB) *Products {
	return &Products{db: db}
}

func (m *Products) FindByID(ctx context.Context, id int64) (*Product, error) {
	var product Product
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListPublished returns online products ordered by sales.
func (m *Products) ListPublished(ctx context.Context, limit int) ([]Product, error) {
	var products []Product
	err := m.db.WithContext(ctx).
		Where("status = ?", 1).
		Order("sales DESC, created_at DESC").
		Limit(limit).
		Find(&products).Error
	return products, err
}
