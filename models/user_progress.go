package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks gamified progression for each user (denormalized for performance)
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to the platform's user record

	// Profile fields used for completion score and recommendations
	Username  string   `gorm:"index" json:"username"`
	Email     string   `json:"email,omitempty"`
	College   string   `json:"college,omitempty"`
	Interests []string `gorm:"serializer:json;type:text" json:"interests"` // declared interest tags, e.g. ["Coding","Music"]
	// RegisteredAt is set once the signup bonus has been paid
	RegisteredAt *time.Time `json:"registered_at,omitempty"`

	// Core progression
	XP     int64 `json:"xp" gorm:"default:0"`
	Points int64 `json:"points" gorm:"default:0"` // legacy mirror of XP

	// Streak
	StreakCount    int        `json:"streak_count" gorm:"default:0"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty" gorm:"type:date"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
