// Package storage is the repository layer behind the progression services.
// Every read and write goes through a Tx obtained from Store.Transaction, so a
// service call sees one consistent snapshot and commits its deltas atomically.
package storage

import (
	"context"
	"errors"
	"time"

	"campus-progression/models"
	"campus-progression/progression"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Stats are platform-wide row counts.
type Stats struct {
	Users  int64 `json:"students"`
	Clubs  int64 `json:"clubs"`
	Events int64 `json:"events"`
}

// ClubStats are the per-club counts a manager sees on the dashboard.
type ClubStats struct {
	Club     models.Club `json:"club"`
	Members  int64       `json:"members"` // approved only
	Events   int64       `json:"events"`
	Feedback int64       `json:"feedback"`
}

type Store interface {
	// Transaction runs fn in one unit of work. A non-nil error from fn rolls back.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// EnsureProgress returns the user's progress row, creating it if missing.
	// Implementations hold a write lock on the row until the transaction ends.
	EnsureProgress(userID string) (*models.UserProgress, error)
	SaveProgress(p *models.UserProgress) error
	Leaderboard(limit int) ([]models.UserProgress, error)
	UserIDs() ([]string, error)
	// SearchUsers matches query case-insensitively against username and email.
	// An empty query lists users.
	SearchUsers(query string, limit int) ([]models.UserProgress, error)
	CountUsers() (int64, error)

	UserBadges(userID string) ([]models.UserBadge, error)
	AwardBadge(userID, badge string, at time.Time) error
	BadgeHolderCounts() (map[string]int64, error)
	UpsertBadgeTypes(types []models.BadgeType) error

	// Counters fills everything but Streak, which lives on the progress row.
	Counters(userID string) (progression.Counters, error)
	SkillInputs(userID string) (progression.SkillInputs, error)
	Careers() ([]progression.Career, error)
	ClubProfiles() ([]progression.ClubProfile, error)
	// AffiliatedClubIDs covers memberships in any status plus managed clubs.
	AffiliatedClubIDs(userID string) (map[string]struct{}, error)
	ApprovedClubs(userID string) ([]models.Club, error)

	CreateClub(c *models.Club) error
	GetClub(id string) (*models.Club, error)
	// IncrementClubPopularity adds by (possibly negative), never going below zero.
	IncrementClubPopularity(id string, by int64) error
	TopClubs(limit int) ([]models.Club, error)
	GetMembership(userID, clubID string) (*models.ClubMembership, error)
	CreateMembership(m *models.ClubMembership) error
	DeleteMembership(id string) error
	CreateClubSkill(cs *models.ClubSkill) error
	// DeleteClub removes the club together with its chat, its events and their
	// registrations, its feedback, club skills and memberships.
	DeleteClub(id string) error
	ManagedClubStats(userID string) ([]ClubStats, error)

	CreateEvent(e *models.Event) error
	GetEvent(id string) (*models.Event, error)
	GetRegistration(userID, eventID string) (*models.EventRegistration, error)
	CreateRegistration(r *models.EventRegistration) error
	RegistrationsSince(userID string, since time.Time) ([]models.EventRegistration, error)
	// DeleteEvent removes the event and its registrations.
	DeleteEvent(id string) error
	RegisteredEvents(userID string) ([]models.Event, error)
	// UpcomingEvents lists events dated strictly after after, soonest first.
	UpcomingEvents(after time.Time, limit int) ([]models.Event, error)

	CreateFeedback(f *models.Feedback) error

	CreateMessage(m *models.Message) error
	GetMessage(id string) (*models.Message, error)
	SetMessagePinned(id string, pinned bool) error
	// ClubMessages lists a club's chat oldest first.
	ClubMessages(clubID string) ([]models.Message, error)
	// PinnedMessages lists a club's pinned messages newest first.
	PinnedMessages(clubID string) ([]models.Message, error)

	CreateSkill(s *models.Skill) error
	SkillsByName(names []string) ([]models.Skill, error)
	GetUserSkill(userID, skillID string) (*models.UserSkill, error)
	CreateUserSkill(us *models.UserSkill) error
	CreateCareer(c *models.Career) error

	Stats() (Stats, error)
}
