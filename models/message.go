package models

// Message posted in a club's chat
type Message struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ClubID         string `gorm:"index;not null" json:"club_id"`
	ExternalUserID string `gorm:"index;not null" json:"user_id"`
	Username       string `json:"username"` // as of posting
	Content        string `gorm:"type:text;not null" json:"content"`
	IsPinned       bool   `gorm:"default:false;index" json:"is_pinned"`

	Timestamps
}
