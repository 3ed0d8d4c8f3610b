package models

import (
	"time"
)

// BadgeType: catalog entry mirrored into the DB (seeded from the rules at startup)
type BadgeType struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null" json:"code"` // slug of Name, e.g. "first-club-joined"
	Name        string    `gorm:"uniqueIndex;not null" json:"name"` // "First Club Joined"
	Description string    `json:"description"`
	Icon        string    `gorm:"size:16" json:"icon"`
	Rarity      string    `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, uncommon, rare, epic, legendary
	XP          int64     `gorm:"default:0" json:"xp"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserBadge: awarded instance, one row per (user, badge)
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"external_user_id"`
	BadgeName      string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_name"`
	AwardedAt      time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}
