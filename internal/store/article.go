package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrArticleNotFound = errors.New("article not found")

// Article is an editorial travel guide entry.
type Article struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title      string `gorm:"type:varchar(200);not null" json:"title"`
	Summary    string `gorm:"type:varchar(500);default:''" json:"summary"`
	CoverImage string `gorm:"type:varchar(500);default:''" json:"cover_image"`
	Content    string `gorm:"type:longtext" json:"content"`
	CategoryID int64  `gorm:"index" json:"category_id"`

	Author   string `gorm:"type:varchar(50);default:''" json:"author"`
	AuthorID int64  `gorm:"default:0" json:"author_id"`

	Status      int8       `gorm:"default:1;index" json:"status"`
	PublishTime *time.Time `json:"publish_time"`

	ViewCount     int `gorm:"default:0" json:"view_count"`
	LikeCount     int `gorm:"default:0" json:"like_count"`
	FavoriteCount int `gorm:"default:0" json:"favorite_count"`

	IsRecommend int8 `gorm:"default:0;index" json:"is_recommend"`
	Sort        int  `gorm:"default:0" json:"sort"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Article) TableName() string {
	return "articles"
}

// Articles is the data access layer for travel guides.
type Articles struct {
	db *gorm.DB
}

func NewArticles(db *gorm.DB) *Articles {
	return &Articles{db: db}
}

func (m *Articles) FindByID(ctx context.Context, id int64) (*Article, error) {
	var article Article
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// IncrementViewCount bumps the view counter atomically at the database.
func (m *Articles) IncrementViewCount(ctx context.Context, id int64) error {
	result := m.db.WithContext(ctx).
		Model(&Article{}).
		Where("id = ?", id).
		Update("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// ListRecommended returns published recommended articles in editorial order.
func (m *Articles) ListRecommended(ctx context.Context, limit int) ([]Article, error) {
	var articles []Article
	err := m.db.WithContext(ctx).
		Where("status = ? AND is_recommend = ?", 1, 1).
		Order("sort ASC, publish_time DESC").
		Limit(limit).
		Find(&articles).Error
	return articles, err
}
