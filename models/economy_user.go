package models

import (
	"time"

	"gorm.io/gorm"
)

// EconomyUser is a local snapshot of user data needed for bulk
// distribution targeting. Owned solely by the economy service; populated
// by the sync worker from the profile service's public API.
type EconomyUser struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username       string    `gorm:"index;not null" json:"username"`
	Email          string    `json:"email,omitempty"`
	IsActive       bool      `gorm:"default:true;index" json:"is_active"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
