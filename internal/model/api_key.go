package model

import (
	"strings"
	"time"
)

const (
	APIKeyPermissionRead  = "read"
	APIKeyPermissionWrite = "write"

	apiKeyPermissionSeparator = ","
)

// APIKey is an issued public API credential. Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      string    `gorm:"index;not null;size:36"`
	Name        string    `gorm:"not null;size:200"`
	KeyHash     string    `gorm:"uniqueIndex;not null;size:64"`
	KeyPrefix   string    `gorm:"not null;size:16"`
	Permissions string    `gorm:"not null;size:100"`
	IsActive    bool      `gorm:"not null"`
	ExpiresAt   time.Time `gorm:""`
	LastUsedAt  time.Time `gorm:""`
	UsageCount  int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// HasPermission reports whether the comma-separated permission list grants the permission.
func (key APIKey) HasPermission(permission string) bool {
	for _, granted := range strings.Split(key.Permissions, apiKeyPermissionSeparator) {
		if strings.EqualFold(strings.TrimSpace(granted), permission) {
			return true
		}
	}
	return false
}

// Expired reports whether the key has an expiry in the past.
func (key APIKey) Expired(now time.Time) bool {
	return !key.ExpiresAt.IsZero() && key.ExpiresAt.Before(now)
}

// JoinPermissions renders permissions in their stored form.
func JoinPermissions(permissions ...string) string {
	normalized := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		trimmed := strings.ToLower(strings.TrimSpace(permission))
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, apiKeyPermissionSeparator)
}
