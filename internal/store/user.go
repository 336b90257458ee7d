package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// User is a mini-program end user, keyed by the WeChat openid.
type User struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OpenID   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UnionID  string `gorm:"type:varchar(64);default:''" json:"-"`
	Nickname string `gorm:"type:varchar(100);default:''" json:"nickname"`
	Avatar   string `gorm:"type:varchar(500);default:''" json:"avatar"`
	Phone    string `gorm:"type:varchar(20);default:''" json:"phone"`
	Gender   int8   `gorm:"default:0" json:"gender"`

	IsFirstOrder int8 `gorm:"default:1" json:"is_first_order"`
	Status       int8 `gorm:"default:1" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) Active() bool {
	return u.Status == 1
}

// Users is the data access layer for mini-program accounts.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (m *Users) FindByID(ctx context.Context, id uint64) (*User, error) {
	var user User
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// EnsureByOpenID returns the account for an openid, creating it on first
// login. The insert is conflict-safe: two concurrent first logins resolve to
// the same row.
func (m *Users) EnsureByOpenID(ctx context.Context, openID, unionID string) (*User, error) {
	user := User{OpenID: openID, UnionID: unionID}
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "open_id"}},
			DoNothing: true,
		}).
		Create(&user).Error
	if err != nil {
		return nil, err
	}

	var found User
	err = m.db.WithContext(ctx).
		Where("open_id = ?", openID).
		First(&found).Error
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// UpdateProfile stores the user-supplied nickname and avatar.
func (m *Users) UpdateProfile(ctx context.Context, id uint64, nickname, avatar string) error {
	return m.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"nickname": nickname,
			"avatar":   avatar,
		}).Error
}
