package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrAdminUserNotFound = errors.New("admin user not found")
	ErrRoleNotFound      = errors.New("role not found")
)

// AdminUser is a console operator account. Passwords are stored as
// hex-encoded SHA-256 digests.
type AdminUser struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Password string `gorm:"type:varchar(128);not null" json:"-"`
	Phone    string `gorm:"type:varchar(20);default:''" json:"phone"`
	Email    string `gorm:"type:varchar(100);default:''" json:"email"`
	RealName string `gorm:"type:varchar(50);default:''" json:"real_name"`
	RoleID   uint64 `gorm:"index" json:"role_id"`
	Status   int8   `gorm:"default:1" json:"status"`

	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `gorm:"type:varchar(45);default:''" json:"last_login_ip"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// Active reports whether the account may authenticate.
func (u *AdminUser) Active() bool {
	return u.Status == 1
}

// VerifyPassword compares a plaintext candidate against the stored digest.
func (u *AdminUser) VerifyPassword(candidate string) bool {
	digest := HashPassword(candidate)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(u.Password)) == 1
}

// HashPassword produces the stored form of a plaintext password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type Role struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	Code        string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Description string `gorm:"type:varchar(200);default:''" json:"description"`
	Status      int8   `gorm:"default:1" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(50);not null" json:"name"`
	Code     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Type     string `gorm:"type:varchar(20);default:''" json:"type"`
	ParentID uint64 `gorm:"default:0" json:"parent_id"`
	Path     string `gorm:"type:varchar(200);default:''" json:"path"`
	Sort     int    `gorm:"default:0" json:"sort"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	RoleID       uint64 `gorm:"index:idx_role_permission,unique"`
	PermissionID uint64 `gorm:"index:idx_role_permission,unique"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// AdminUsers is the data access layer for console accounts and their roles.
type AdminUsers struct {
	db *gorm.DB
}

func NewAdminUsers(db *gorm.DB) *AdminUsers {
	return &AdminUsers{db: db}
}

func (m *AdminUsers) FindByUsername(ctx context.Context, username string) (*AdminUser, error) {
	var user AdminUser
	err := m.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (m *AdminUsers) FindByID(ctx context.Context, id uint64) (*AdminUser, error) {
	var user AdminUser
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RecordLogin stamps the last successful login on the account.
func (m *AdminUsers) RecordLogin(ctx context.Context, id uint64, ip string, at time.Time) error {
	return m.db.WithContext(ctx).
		Model(&AdminUser{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_login_time": at,
			"last_login_ip":   ip,
		}).Error
}

func (m *AdminUsers) RoleByID(ctx context.Context, id uint64) (*Role, error) {
	var role Role
	err := m.db.WithContext(ctx).
		Where("id = ?", id).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// PermissionCodes returns the permission codes granted to a role.
func (m *AdminUsers) PermissionCodes(ctx context.Context, roleID uint64) ([]string, error) {
	var codes []string
	err := m.db.WithContext(ctx).
		Model(&Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.sort").
		Pluck("permissions.code", &codes).Error
	return codes, err
}
