package models

import "time"

// Event hosted by a club
type Event struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ClubID      string    `gorm:"index;not null" json:"club_id"`
	CreatorID   string    `gorm:"index" json:"creator_id"` // ExternalUserID
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	EventDate   time.Time `gorm:"index;not null" json:"event_date"`
	Difficulty  string    `gorm:"type:varchar(16);default:'Beginner'" json:"difficulty"` // Beginner / Intermediate / Advanced
	XPReward    int64     `gorm:"not null;default:0" json:"xp_reward"`

	Timestamps
}

// EventRegistration = user signed up for an event
type EventRegistration struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_user_event;not null" json:"external_user_id"`
	EventID        string    `gorm:"uniqueIndex:idx_user_event;not null" json:"event_id"`
	RegisteredAt   time.Time `gorm:"autoCreateTime;index" json:"registered_at"`
}
