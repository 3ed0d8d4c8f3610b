package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"campus-progression/metrics"
	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"
)

// DefaultLeaderboardSize is how many users the leaderboard shows when the caller doesn't say.
const DefaultLeaderboardSize = 20

// topClubsSize is how many clubs ride along with the leaderboard
const topClubsSize = 10

type ProgressionService struct {
	Store   storage.Store
	Rules   *progression.Rules
	Ledger  *progression.Ledger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewProgressionService(store storage.Store, rules *progression.Rules, m *metrics.Metrics) *ProgressionService {
	return &ProgressionService{
		Store:   store,
		Rules:   rules,
		Ledger:  progression.NewLedger(rules),
		Metrics: m,
		Now:     time.Now,
	}
}

// BadgeView is a held badge joined with its catalog entry.
type BadgeView struct {
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Rarity      string    `json:"rarity"`
	XP          int64     `json:"xp"`
	AwardedAt   time.Time `json:"awarded_at,omitempty"`
}

type ProgressView struct {
	UserID         string                `json:"user_id"`
	Username       string                `json:"username"`
	XP             int64                 `json:"xp"`
	Points         int64                 `json:"points"`
	Level          progression.LevelInfo `json:"level"`
	StreakCount    int                   `json:"streak_count"`
	LastActiveDate *time.Time            `json:"last_active_date,omitempty"`
	LastLevelUpAt  *time.Time            `json:"last_level_up_at,omitempty"`
	Badges         []BadgeView           `json:"badges"`
	TopBadges      []BadgeView           `json:"top_badges"`
	// NewBadges were awarded retroactively while building this view
	NewBadges []progression.BadgeID `json:"new_badges,omitempty"`
}

// ActivityResult is what every rewarded action reports back.
type ActivityResult struct {
	progression.Delta
	XP      int64                 `json:"xp"`
	Level   progression.LevelInfo `json:"level"`
	Streak  int                   `json:"streak_count"`
	Message string                `json:"message"`
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	XP        int64  `json:"xp"`
	Level     int    `json:"level"`
	LevelName string `json:"level_name"`
	Badges    int    `json:"badges"`
}

type ClubStanding struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	PopularityScore int64  `json:"popularity_score"`
}

type Leaderboard struct {
	Users []LeaderboardEntry `json:"users"`
	Clubs []ClubStanding     `json:"clubs"`
}

// userState pairs the stored progress row with the engine's view of it.
type userState struct {
	prog   *models.UserProgress
	badges []models.UserBadge
	state  progression.State
}

func (s *ProgressionService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// load locks (or creates) the user's row and rebuilds their engine state.
func (s *ProgressionService) load(tx storage.Tx, userID string) (*userState, error) {
	prog, err := tx.EnsureProgress(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", userID, err)
	}
	badges, err := tx.UserBadges(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load badges for %s: %w", userID, err)
	}

	ids := make([]progression.BadgeID, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, progression.BadgeID(b.BadgeName))
	}
	st := progression.State{
		XP:          prog.XP,
		Points:      prog.Points,
		Badges:      progression.NewBadgeSet(ids...),
		StreakCount: prog.StreakCount,
	}
	if prog.LastActiveDate != nil {
		st.LastActiveDate = progression.Day(*prog.LastActiveDate)
	}
	return &userState{prog: prog, badges: badges, state: st}, nil
}

// commit writes the session's state back and records any new badge rows.
func (s *ProgressionService) commit(tx storage.Tx, us *userState, sess *progression.Session) (progression.Delta, error) {
	delta := sess.Delta()
	now := s.now()

	us.prog.XP = us.state.XP
	us.prog.Points = us.state.Points
	us.prog.StreakCount = us.state.StreakCount
	if !us.state.LastActiveDate.IsZero() {
		day := us.state.LastActiveDate
		us.prog.LastActiveDate = &day
	}
	if delta.LeveledUp {
		us.prog.LastLevelUpAt = &now
	}
	if err := tx.SaveProgress(us.prog); err != nil {
		return delta, fmt.Errorf("failed to save progress for %s: %w", us.prog.ExternalUserID, err)
	}

	for _, id := range delta.NewBadges {
		if err := tx.AwardBadge(us.prog.ExternalUserID, string(id), now); err != nil {
			return delta, fmt.Errorf("failed to award %q to %s: %w", id, us.prog.ExternalUserID, err)
		}
		us.badges = append(us.badges, models.UserBadge{
			ExternalUserID: us.prog.ExternalUserID,
			BadgeName:      string(id),
			AwardedAt:      now,
		})
	}
	return delta, nil
}

// observe logs and counts a committed delta. Call it only after the transaction succeeded.
func (s *ProgressionService) observe(userID, action string, us *userState, delta progression.Delta) {
	if delta.XPGained > 0 {
		log.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d (reason: %s)", userID, us.state.XP, delta.LevelAfter, action)
	}
	if delta.LeveledUp {
		log.Printf("🆙 Level up: %s → %d", userID, delta.LevelAfter)
	}
	for _, id := range delta.NewBadges {
		log.Printf("🎖️ Badge awarded: %s → %s", id, userID)
	}

	if s.Metrics == nil {
		return
	}
	if delta.XPGained > 0 {
		s.Metrics.XPGranted.WithLabelValues(action).Add(float64(delta.XPGained))
	}
	if delta.LeveledUp {
		s.Metrics.LevelUps.Inc()
	}
	for _, id := range delta.NewBadges {
		s.Metrics.BadgesAwarded.WithLabelValues(string(id)).Inc()
	}
}

func (s *ProgressionService) result(us *userState, delta progression.Delta, msg string) *ActivityResult {
	if delta.LeveledUp {
		msg += " 🆙 Level Up!"
	}
	return &ActivityResult{
		Delta:   delta,
		XP:      us.state.XP,
		Level:   s.Rules.Levels.LevelOf(us.state.XP),
		Streak:  us.state.StreakCount,
		Message: msg,
	}
}

// act runs one rewarded action for userID: fn edits the session inside a
// transaction and returns the user-facing message.
func (s *ProgressionService) act(ctx context.Context, userID, action string,
	fn func(tx storage.Tx, us *userState, sess *progression.Session) (string, error),
) (*ActivityResult, error) {
	var (
		us    *userState
		delta progression.Delta
		msg   string
	)
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		if us, err = s.load(tx, userID); err != nil {
			return err
		}
		sess := s.Ledger.Begin(&us.state)
		if msg, err = fn(tx, us, sess); err != nil {
			return err
		}
		delta, err = s.commit(tx, us, sess)
		return err
	})
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.ActionFailures.WithLabelValues(action).Inc()
		}
		return nil, err
	}
	s.observe(userID, action, us, delta)
	return s.result(us, delta, msg), nil
}

func (s *ProgressionService) badgeView(b models.UserBadge) BadgeView {
	v := BadgeView{Name: b.BadgeName, AwardedAt: b.AwardedAt}
	if def, ok := s.Rules.Badges.Lookup(progression.BadgeID(b.BadgeName)); ok {
		v.Icon = def.Icon
		v.Description = def.Description
		v.Rarity = def.Rarity.String()
		v.XP = def.XP
	}
	return v
}

func (s *ProgressionService) view(us *userState) *ProgressView {
	byName := make(map[progression.BadgeID]models.UserBadge, len(us.badges))
	badges := make([]BadgeView, 0, len(us.badges))
	for _, b := range us.badges {
		byName[progression.BadgeID(b.BadgeName)] = b
		badges = append(badges, s.badgeView(b))
	}
	top := []BadgeView{}
	for _, id := range s.Rules.Badges.TopBadges(us.state.Badges, 3) {
		top = append(top, s.badgeView(byName[id]))
	}

	return &ProgressView{
		UserID:         us.prog.ExternalUserID,
		Username:       us.prog.Username,
		XP:             us.state.XP,
		Points:         us.state.Points,
		Level:          s.Rules.Levels.LevelOf(us.state.XP),
		StreakCount:    us.state.StreakCount,
		LastActiveDate: us.prog.LastActiveDate,
		LastLevelUpAt:  us.prog.LastLevelUpAt,
		Badges:         badges,
		TopBadges:      top,
	}
}

// reconcile awards whatever the user's stored activity already qualifies them for.
func (s *ProgressionService) reconcile(tx storage.Tx, us *userState, sess *progression.Session) error {
	counters, err := tx.Counters(us.prog.ExternalUserID)
	if err != nil {
		return fmt.Errorf("failed to count activity for %s: %w", us.prog.ExternalUserID, err)
	}
	counters.Streak = us.state.StreakCount
	sess.Reconcile(counters)
	return nil
}

// GetProgress returns the user's progression, catching up on any badges the
// stored activity already earns.
func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (*ProgressView, error) {
	var (
		us    *userState
		delta progression.Delta
	)
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		if us, err = s.load(tx, userID); err != nil {
			return err
		}
		sess := s.Ledger.Begin(&us.state)
		if err := s.reconcile(tx, us, sess); err != nil {
			return err
		}
		if sess.Delta().NewBadges == nil {
			return nil
		}
		delta, err = s.commit(tx, us, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.ReconcileRuns.WithLabelValues("view").Inc()
	}
	s.observe(userID, "reconcile", us, delta)

	v := s.view(us)
	v.NewBadges = delta.NewBadges
	return v, nil
}

// Badges lists the user's held badges in award order.
func (s *ProgressionService) Badges(ctx context.Context, userID string) ([]BadgeView, error) {
	var out []BadgeView
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		rows, err := tx.UserBadges(userID)
		if err != nil {
			return err
		}
		out = make([]BadgeView, 0, len(rows))
		for _, b := range rows {
			out = append(out, s.badgeView(b))
		}
		return nil
	})
	return out, err
}

// BadgesSince lists badges awarded to the user strictly after since, oldest
// first, along with the newest award time seen (since itself when none).
func (s *ProgressionService) BadgesSince(ctx context.Context, userID string, since time.Time) ([]BadgeView, time.Time, error) {
	var out []BadgeView
	latest := since
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		rows, err := tx.UserBadges(userID)
		if err != nil {
			return err
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].AwardedAt.Before(rows[j].AwardedAt) })
		for _, b := range rows {
			if !b.AwardedAt.After(since) {
				continue
			}
			out = append(out, s.badgeView(b))
			latest = b.AwardedAt
		}
		return nil
	})
	return out, latest, err
}

// Login counts today toward the user's streak.
func (s *ProgressionService) Login(ctx context.Context, userID string) (*ActivityResult, error) {
	return s.act(ctx, userID, "login", func(_ storage.Tx, us *userState, sess *progression.Session) (string, error) {
		sess.UpdateStreak(s.now())
		return fmt.Sprintf("Welcome back! 🔥 %d day streak", us.state.StreakCount), nil
	})
}

// GrantXP is the admin path for adjusting XP by hand.
func (s *ProgressionService) GrantXP(ctx context.Context, userID string, amount int64, reason string) (*ActivityResult, error) {
	if reason == "" {
		reason = "admin_grant"
	}
	return s.act(ctx, userID, reason, func(_ storage.Tx, _ *userState, sess *progression.Session) (string, error) {
		if err := sess.AddXP(amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("+%d XP (%s)", amount, reason), nil
	})
}

// Leaderboard ranks users by XP and clubs by popularity.
func (s *ProgressionService) Leaderboard(ctx context.Context, limit int) (*Leaderboard, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultLeaderboardSize
	}
	board := &Leaderboard{Users: []LeaderboardEntry{}, Clubs: []ClubStanding{}}
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		users, err := tx.Leaderboard(limit)
		if err != nil {
			return err
		}
		for i, u := range users {
			info := s.Rules.Levels.LevelOf(u.XP)
			held, err := tx.UserBadges(u.ExternalUserID)
			if err != nil {
				return err
			}
			board.Users = append(board.Users, LeaderboardEntry{
				Rank:      i + 1,
				UserID:    u.ExternalUserID,
				Username:  u.Username,
				XP:        u.XP,
				Level:     info.Level,
				LevelName: info.Name,
				Badges:    len(held),
			})
		}

		clubs, err := tx.TopClubs(topClubsSize)
		if err != nil {
			return err
		}
		for _, c := range clubs {
			board.Clubs = append(board.Clubs, ClubStanding{
				ID:              c.ID,
				Name:            c.Name,
				Category:        c.Category,
				PopularityScore: c.PopularityScore,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// UserSummary is a search hit; the external id is what other services know the user by.
type UserSummary struct {
	ExternalUserID string `json:"external_user_id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Level          int    `json:"level"`
	XP             int64  `json:"xp"`
}

// SearchUsers finds users by username or email, e.g. to invite them to a club.
// Limits outside 1..100 fall back to 50.
func (s *ProgressionService) SearchUsers(ctx context.Context, query string, limit int) ([]UserSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	res := []UserSummary{}
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		users, err := tx.SearchUsers(query, limit)
		if err != nil {
			return err
		}
		for _, u := range users {
			res = append(res, UserSummary{
				ExternalUserID: u.ExternalUserID,
				Username:       u.Username,
				Email:          u.Email,
				Level:          s.Rules.Levels.Level(u.XP),
				XP:             u.XP,
			})
		}
		return nil
	})
	return res, err
}

// Stats are the platform-wide counts shown on the landing page.
func (s *ProgressionService) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		st, err = tx.Stats()
		return err
	})
	return st, err
}
