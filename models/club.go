package models

// MembershipStatus of a user in a club
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
)

// Club is a campus club. Name + Description + Category feed the recommender.
type Club struct {
	ID              string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name            string `gorm:"uniqueIndex;not null" json:"name"`
	Description     string `gorm:"type:text;not null" json:"description"`
	Category        string `gorm:"default:'General'" json:"category"`
	ManagerID       string `gorm:"index;not null" json:"manager_id"` // ExternalUserID
	PopularityScore int64  `gorm:"default:0" json:"popularity_score"`

	Skills []ClubSkill `gorm:"foreignKey:ClubID" json:"skills,omitempty"`

	Timestamps
}

// ClubMembership links a user to a club (pending until approved)
type ClubMembership struct {
	ID             string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string           `gorm:"uniqueIndex:idx_user_club;not null" json:"external_user_id"`
	ClubID         string           `gorm:"uniqueIndex:idx_user_club;not null" json:"club_id"`
	Status         MembershipStatus `gorm:"type:varchar(16);default:'pending'" json:"status"`

	Timestamps
}

// Feedback left by a user on a club
type Feedback struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`
	ClubID         string `gorm:"index;not null" json:"club_id"`
	Content        string `gorm:"type:text;not null" json:"content"`

	Timestamps
}

// TableName keeps the plural form GORM would not guess for "feedback"
func (Feedback) TableName() string {
	return "feedbacks"
}
