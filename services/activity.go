package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"
)

var (
	ErrAccountExists      = errors.New("account already registered")
	ErrAlreadyMember      = errors.New("already a member or request pending")
	ErrManagerCannotJoin  = errors.New("managers cannot join their own club")
	ErrManagerCannotLeave = errors.New("managers cannot leave their own club")
	ErrNotMember          = errors.New("not a member of this club")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrEmptyFeedback      = errors.New("feedback content is empty")
	ErrNoNewSkills        = errors.New("no new skills added")
	ErrNotClubManager     = errors.New("only the club manager can do this")
	ErrNotEventCreator    = errors.New("only the event creator can do this")
)

// ManualSkillPoints is what a self-declared skill is worth.
const ManualSkillPoints = 10

// DefaultEventXP applies when an event is created without a reward. An explicit
// zero stays zero.
const DefaultEventXP = 30

type ActivityService struct {
	Progress *ProgressionService
	Catalog  *CatalogService
}

func NewActivityService(progress *ProgressionService, catalog *CatalogService) *ActivityService {
	return &ActivityService{Progress: progress, Catalog: catalog}
}

func (s *ActivityService) rewards() progression.RewardTable {
	return s.Progress.Rules.Rewards
}

type AccountInput struct {
	Username  string
	Email     string
	College   string
	Interests []string
}

// RegisterAccount fills in the profile of a new user and grants the signup bonus.
func (s *ActivityService) RegisterAccount(ctx context.Context, userID string, in AccountInput) (*ActivityResult, error) {
	return s.Progress.act(ctx, userID, "register", func(_ storage.Tx, us *userState, sess *progression.Session) (string, error) {
		if us.prog.RegisteredAt != nil {
			return "", ErrAccountExists
		}
		now := s.Progress.now()
		us.prog.RegisteredAt = &now
		us.prog.Username = strings.TrimSpace(in.Username)
		us.prog.Email = strings.TrimSpace(in.Email)
		us.prog.College = strings.TrimSpace(in.College)
		us.prog.Interests = cleanTags(in.Interests)

		if err := grant(sess, s.rewards().Register); err != nil {
			return "", err
		}
		return fmt.Sprintf("Your account has been created! Welcome aboard! +%d XP 🎉", s.rewards().Register), nil
	})
}

type ProfileInput struct {
	College   *string
	Interests []string
}

// UpdateProfile edits the optional profile fields. It grants nothing.
func (s *ActivityService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.UserProgress, error) {
	var out models.UserProgress
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		prog, err := tx.EnsureProgress(userID)
		if err != nil {
			return err
		}
		if in.College != nil {
			prog.College = strings.TrimSpace(*in.College)
		}
		if in.Interests != nil {
			prog.Interests = cleanTags(in.Interests)
		}
		if err := tx.SaveProgress(prog); err != nil {
			return err
		}
		out = *prog
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MirrorProfile copies identity fields from the platform's profile service.
// Blank values never overwrite what the user entered.
func (s *ActivityService) MirrorProfile(ctx context.Context, userID, username, email string) error {
	return s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		prog, err := tx.EnsureProgress(userID)
		if err != nil {
			return err
		}
		if v := strings.TrimSpace(username); v != "" {
			prog.Username = v
		}
		if v := strings.TrimSpace(email); v != "" {
			prog.Email = v
		}
		return tx.SaveProgress(prog)
	})
}

type ClubInput struct {
	Name        string
	Description string
	Category    string
}

// CreateClub makes userID the club's manager.
func (s *ActivityService) CreateClub(ctx context.Context, userID string, in ClubInput) (*models.Club, *ActivityResult, error) {
	var club models.Club
	res, err := s.Progress.act(ctx, userID, "create_club", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		club = models.Club{
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			Category:    strings.TrimSpace(in.Category),
			ManagerID:   userID,
		}
		if err := tx.CreateClub(&club); err != nil {
			return "", fmt.Errorf("failed to create club: %w", err)
		}
		if err := s.Catalog.AssignClubSkills(tx, &club); err != nil {
			return "", err
		}

		if err := grant(sess, s.rewards().CreateClub); err != nil {
			return "", err
		}
		sess.AddBadge(progression.BadgeClubLeader)
		sess.UpdateStreak(s.Progress.now())
		return fmt.Sprintf("Club created! +%d XP & %q badge! 🎉", s.rewards().CreateClub, progression.BadgeClubLeader), nil
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("✅ Club created: %s (manager %s)", club.Name, userID)
	return &club, res, nil
}

type EventInput struct {
	ClubID      string
	Title       string
	Description string
	EventDate   time.Time
	Difficulty  string
	XPReward    *int64 // nil means DefaultEventXP
}

func (s *ActivityService) CreateEvent(ctx context.Context, userID string, in EventInput) (*models.Event, *ActivityResult, error) {
	var event models.Event
	res, err := s.Progress.act(ctx, userID, "create_event", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		if _, err := tx.GetClub(in.ClubID); err != nil {
			return "", fmt.Errorf("club %s: %w", in.ClubID, err)
		}
		event = models.Event{
			ClubID:      in.ClubID,
			CreatorID:   userID,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			EventDate:   in.EventDate,
			Difficulty:  in.Difficulty,
			XPReward:    DefaultEventXP,
		}
		if event.Difficulty == "" {
			event.Difficulty = "Beginner"
		}
		if in.XPReward != nil {
			event.XPReward = *in.XPReward
		}
		if err := tx.CreateEvent(&event); err != nil {
			return "", fmt.Errorf("failed to create event: %w", err)
		}

		if err := grant(sess, s.rewards().CreateEvent); err != nil {
			return "", err
		}
		sess.UpdateStreak(s.Progress.now())
		return fmt.Sprintf("Event created! +%d XP ✨", s.rewards().CreateEvent), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &event, res, nil
}

// JoinClub approves the membership immediately. The first approved club earns
// First Club Joined.
func (s *ActivityService) JoinClub(ctx context.Context, userID, clubID string) (*ActivityResult, error) {
	return s.Progress.act(ctx, userID, "join_club", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		club, err := tx.GetClub(clubID)
		if err != nil {
			return "", fmt.Errorf("club %s: %w", clubID, err)
		}
		if club.ManagerID == userID {
			return "", ErrManagerCannotJoin
		}
		if _, err := tx.GetMembership(userID, clubID); err == nil {
			return "", ErrAlreadyMember
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}

		// count before inserting, so "first" means no earlier approved club
		counters, err := tx.Counters(userID)
		if err != nil {
			return "", err
		}
		m := models.ClubMembership{ExternalUserID: userID, ClubID: clubID, Status: models.MembershipApproved}
		if err := tx.CreateMembership(&m); err != nil {
			return "", fmt.Errorf("failed to join club: %w", err)
		}
		if err := tx.IncrementClubPopularity(clubID, 1); err != nil {
			return "", err
		}

		if counters.ApprovedClubs == 0 {
			sess.AddBadge(progression.BadgeFirstClubJoined)
		}
		if err := grant(sess, s.rewards().JoinClub); err != nil {
			return "", err
		}
		sess.UpdateStreak(s.Progress.now())
		return fmt.Sprintf("Joined %s! +%d XP 🎉", club.Name, s.rewards().JoinClub), nil
	})
}

// LeaveClub drops a membership. Earned XP and badges stay.
func (s *ActivityService) LeaveClub(ctx context.Context, userID, clubID string) error {
	return s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		club, err := tx.GetClub(clubID)
		if err != nil {
			return fmt.Errorf("club %s: %w", clubID, err)
		}
		if club.ManagerID == userID {
			return ErrManagerCannotLeave
		}
		m, err := tx.GetMembership(userID, clubID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteMembership(m.ID); err != nil {
			return err
		}
		return tx.IncrementClubPopularity(clubID, -1)
	})
}

// DeleteClub removes a club and everything hanging off it. Only its manager may.
// XP and badges earned through the club stay with their holders.
func (s *ActivityService) DeleteClub(ctx context.Context, userID, clubID string) error {
	var name string
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		club, err := tx.GetClub(clubID)
		if err != nil {
			return fmt.Errorf("club %s: %w", clubID, err)
		}
		if club.ManagerID != userID {
			return ErrNotClubManager
		}
		name = club.Name
		return tx.DeleteClub(clubID)
	})
	if err != nil {
		return err
	}
	log.Printf("🗑️ Club deleted: %s (by %s)", name, userID)
	return nil
}

// DeleteEvent removes an event and its registrations. Only its creator may.
func (s *ActivityService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	return s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		event, err := tx.GetEvent(eventID)
		if err != nil {
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		if event.CreatorID != userID {
			return ErrNotEventCreator
		}
		return tx.DeleteEvent(eventID)
	})
}

// RegisterForEvent grants the event's own XP reward. The first registration
// earns Newbie and the fifth Social Butterfly.
func (s *ActivityService) RegisterForEvent(ctx context.Context, userID, eventID string) (*ActivityResult, error) {
	return s.Progress.act(ctx, userID, "register_event", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		event, err := tx.GetEvent(eventID)
		if err != nil {
			return "", fmt.Errorf("event %s: %w", eventID, err)
		}
		if _, err := tx.GetRegistration(userID, eventID); err == nil {
			return "", ErrAlreadyRegistered
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}

		counters, err := tx.Counters(userID)
		if err != nil {
			return "", err
		}
		prior := counters.Registrations
		reg := models.EventRegistration{ExternalUserID: userID, EventID: eventID, RegisteredAt: s.Progress.now()}
		if err := tx.CreateRegistration(&reg); err != nil {
			return "", fmt.Errorf("failed to register: %w", err)
		}

		if err := grant(sess, event.XPReward); err != nil {
			return "", err
		}
		sess.UpdateStreak(s.Progress.now())
		if prior == 0 {
			sess.AddBadge(progression.BadgeNewbie)
		}
		if prior+1 >= 5 {
			sess.AddBadge(progression.BadgeSocialButterfly)
		}
		return fmt.Sprintf("Registered for %s! +%d XP ⚡", event.Title, event.XPReward), nil
	})
}

// SubmitFeedback records feedback on a club. The fifth one earns Feedback Guru.
func (s *ActivityService) SubmitFeedback(ctx context.Context, userID, clubID, content string) (*ActivityResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyFeedback
	}
	return s.Progress.act(ctx, userID, "feedback", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		if _, err := tx.GetClub(clubID); err != nil {
			return "", fmt.Errorf("club %s: %w", clubID, err)
		}
		fb := models.Feedback{ExternalUserID: userID, ClubID: clubID, Content: content}
		if err := tx.CreateFeedback(&fb); err != nil {
			return "", fmt.Errorf("failed to save feedback: %w", err)
		}

		if err := grant(sess, s.rewards().Feedback); err != nil {
			return "", err
		}
		sess.UpdateStreak(s.Progress.now())

		// includes the row just written
		counters, err := tx.Counters(userID)
		if err != nil {
			return "", err
		}
		if counters.Feedback >= 5 {
			sess.AddBadge(progression.BadgeFeedbackGuru)
		}
		return fmt.Sprintf("Feedback submitted! +%d XP 📝", s.rewards().Feedback), nil
	})
}

// AddSkills declares catalog skills on the user's profile. Unknown names and
// skills the user already has are skipped; if nothing is left, ErrNoNewSkills.
func (s *ActivityService) AddSkills(ctx context.Context, userID string, names []string) (*ActivityResult, error) {
	return s.Progress.act(ctx, userID, "add_skills", func(tx storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		skills, err := tx.SkillsByName(cleanTags(names))
		if err != nil {
			return "", err
		}
		added := 0
		for _, sk := range skills {
			if _, err := tx.GetUserSkill(userID, sk.ID); err == nil {
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return "", err
			}
			us := models.UserSkill{ExternalUserID: userID, SkillID: sk.ID, Amount: ManualSkillPoints, IsManual: true}
			if err := tx.CreateUserSkill(&us); err != nil {
				return "", fmt.Errorf("failed to add skill %s: %w", sk.Name, err)
			}
			added++
		}
		if added == 0 {
			return "", ErrNoNewSkills
		}

		xp := s.rewards().SkillAdded * int64(added)
		if err := grant(sess, xp); err != nil {
			return "", err
		}
		sess.UpdateStreak(s.Progress.now())
		return fmt.Sprintf("%d skills added! +%d XP 🧠", added, xp), nil
	})
}

// grant adds amount through the session; a reward configured as zero grants nothing.
func grant(sess *progression.Session, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return sess.AddXP(amount)
}

// cleanTags trims, drops blanks and de-duplicates, keeping first-seen order.
func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
