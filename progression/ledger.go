package progression

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAmount is returned when an XP delta is zero or negative.
var ErrInvalidAmount = errors.New("xp amount must be positive")

// StreakBadgeDays is the streak length that earns BadgeStreak7.
const StreakBadgeDays = 7

// State is a user's mutable progression snapshot. The caller owns it and is
// responsible for persisting it; the ledger only edits the fields.
type State struct {
	XP     int64
	Points int64 // legacy mirror of XP
	Badges BadgeSet

	StreakCount int
	// LastActiveDate is a calendar day (UTC midnight); zero means never active.
	LastActiveDate time.Time
}

// Clone returns a deep copy so callers can diff before/after.
func (s State) Clone() State {
	s.Badges = s.Badges.Clone()
	return s
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ledger applies progression rules to State values.
type Ledger struct {
	levels *LevelTable
	badges *BadgeCatalog
}

func NewLedger(rules *Rules) *Ledger {
	return &Ledger{levels: rules.Levels, badges: rules.Badges}
}

// Level is a convenience for the 1-based level of a state.
func (l *Ledger) Level(s *State) int {
	return l.levels.Level(s.XP)
}

// AddXP grants amount XP and reports whether the level went up.
func (l *Ledger) AddXP(s *State, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	before := l.levels.Level(s.XP)
	s.XP += amount
	s.Points += amount
	return l.levels.Level(s.XP) > before, nil
}

// AddBadge records id once. A first award of a catalog badge also grants its XP.
func (l *Ledger) AddBadge(s *State, id BadgeID) bool {
	if !s.Badges.Add(id) {
		return false
	}
	if b, ok := l.badges.Lookup(id); ok && b.XP > 0 {
		// positive by the guard above, so AddXP cannot fail
		_, _ = l.AddXP(s, b.XP)
	}
	return true
}

// UpdateStreak folds one qualifying action at now into the streak counters.
func (l *Ledger) UpdateStreak(s *State, now time.Time) {
	today := Day(now)
	if s.LastActiveDate.IsZero() {
		s.StreakCount = 1
	} else {
		gap := int(today.Sub(Day(s.LastActiveDate)).Hours() / 24)
		switch {
		case gap == 1:
			s.StreakCount++
		case gap > 1:
			s.StreakCount = 1
		}
		// gap 0 (same day) or negative (clock went backwards): unchanged
	}
	s.LastActiveDate = today

	if s.StreakCount >= StreakBadgeDays {
		l.AddBadge(s, BadgeStreak7)
	}
}

// Counters are aggregate activity counts the caller reads from storage.
type Counters struct {
	ApprovedClubs int64 `json:"approved_clubs"`
	Registrations int64 `json:"registrations"`
	Feedback      int64 `json:"feedback"`
	ManagedClubs  int64 `json:"managed_clubs"`
	Streak        int   `json:"streak"`
}

// MissingBadges returns the badges the counters qualify for that s does not
// hold yet. It never mutates s.
func (l *Ledger) MissingBadges(s *State, c Counters) []BadgeID {
	due := []struct {
		id BadgeID
		ok bool
	}{
		{BadgeFirstClubJoined, c.ApprovedClubs >= 1},
		{BadgeNewbie, c.Registrations >= 1},
		{BadgeSocialButterfly, c.Registrations >= 5},
		{BadgeFeedbackGuru, c.Feedback >= 5},
		{BadgeStreak7, c.Streak >= StreakBadgeDays},
		{BadgeClubLeader, c.ManagedClubs >= 1},
	}
	var missing []BadgeID
	for _, d := range due {
		if d.ok && !s.Badges.Has(d.id) {
			missing = append(missing, d.id)
		}
	}
	return missing
}

// Delta summarizes what a batch of ledger operations did to one state.
type Delta struct {
	XPGained    int64     `json:"xp_gained"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	LeveledUp   bool      `json:"leveled_up"`
	NewBadges   []BadgeID `json:"new_badges"`
}

// Session groups several ledger operations on one state so the caller gets a
// single combined delta.
type Session struct {
	ledger     *Ledger
	state      *State
	startXP    int64
	startLevel int
	newBadges  []BadgeID
}

func (l *Ledger) Begin(s *State) *Session {
	return &Session{
		ledger:     l,
		state:      s,
		startXP:    s.XP,
		startLevel: l.levels.Level(s.XP),
	}
}

func (t *Session) AddXP(amount int64) error {
	_, err := t.ledger.AddXP(t.state, amount)
	return err
}

func (t *Session) AddBadge(id BadgeID) bool {
	if !t.ledger.AddBadge(t.state, id) {
		return false
	}
	t.newBadges = append(t.newBadges, id)
	return true
}

func (t *Session) UpdateStreak(now time.Time) {
	before := t.state.Badges.Has(BadgeStreak7)
	t.ledger.UpdateStreak(t.state, now)
	if !before && t.state.Badges.Has(BadgeStreak7) {
		t.newBadges = append(t.newBadges, BadgeStreak7)
	}
}

// Reconcile awards every missing badge for c.
func (t *Session) Reconcile(c Counters) []BadgeID {
	var awarded []BadgeID
	for _, id := range t.ledger.MissingBadges(t.state, c) {
		if t.AddBadge(id) {
			awarded = append(awarded, id)
		}
	}
	return awarded
}

func (t *Session) State() *State { return t.state }

func (t *Session) Delta() Delta {
	after := t.ledger.levels.Level(t.state.XP)
	return Delta{
		XPGained:    t.state.XP - t.startXP,
		LevelBefore: t.startLevel,
		LevelAfter:  after,
		LeveledUp:   after > t.startLevel,
		NewBadges:   append([]BadgeID(nil), t.newBadges...),
	}
}
