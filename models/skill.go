package models

// Skill e.g. "DSA", "Public Speaking", "Creativity"
type Skill struct {
	ID   string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// ClubSkill: how much membership in a club contributes to a skill
type ClubSkill struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ClubID  string `gorm:"index;not null" json:"club_id"`
	SkillID string `gorm:"index;not null" json:"skill_id"`
	Points  int64  `gorm:"default:10" json:"points"`

	Skill Skill `gorm:"foreignKey:SkillID" json:"skill"`
}

// UserSkill: manually declared (or seeded) skill points
type UserSkill struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_skill;not null" json:"external_user_id"`
	SkillID        string `gorm:"uniqueIndex:idx_user_skill;not null" json:"skill_id"`
	Amount         int64  `gorm:"default:0" json:"amount"`
	IsManual       bool   `gorm:"default:false" json:"is_manual"`

	Skill Skill `gorm:"foreignKey:SkillID" json:"skill"`
}

// Career with the skill names it requires, all weighted equally
type Career struct {
	ID             string   `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name           string   `gorm:"uniqueIndex;not null" json:"name"`
	Description    string   `gorm:"type:text" json:"description"`
	RequiredSkills []string `gorm:"serializer:json;type:text;not null" json:"required_skills"` // e.g. ["DSA","System Design"]
	Position       int      `gorm:"default:0" json:"position"`                                  // catalog order
}
