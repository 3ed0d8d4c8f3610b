package services

import (
	"context"
	"fmt"
	"log"

	"campus-progression/progression"
	"campus-progression/storage"
)

type BadgeService struct {
	Progress *ProgressionService
}

func NewBadgeService(progress *ProgressionService) *BadgeService {
	return &BadgeService{Progress: progress}
}

// Achievement is one catalog badge as seen by a user.
type Achievement struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"desc"`
	Rarity      string `json:"rarity"`
	XP          int64  `json:"xp"`
	Earned      bool   `json:"earned"`
	EarnedPct   int    `json:"earned_pct"` // share of all users holding it
}

// Reconcile awards every badge the user's recorded activity qualifies for but
// that is missing. Running it twice awards nothing the second time.
func (s *BadgeService) Reconcile(ctx context.Context, userID string) (*ActivityResult, error) {
	res, err := s.Progress.act(ctx, userID, "reconcile", func(tx storage.Tx, us *userState, sess *progression.Session) (string, error) {
		if err := s.Progress.reconcile(tx, us, sess); err != nil {
			return "", err
		}
		n := len(sess.Delta().NewBadges)
		if n == 0 {
			return "Badges are up to date", nil
		}
		return fmt.Sprintf("%d badge(s) caught up! 🎖️", n), nil
	})
	if err == nil && s.Progress.Metrics != nil {
		s.Progress.Metrics.ReconcileRuns.WithLabelValues("request").Inc()
	}
	return res, err
}

// Achievements lists the whole catalog with the user's status and how common each badge is.
func (s *BadgeService) Achievements(ctx context.Context, userID string) ([]Achievement, error) {
	var out []Achievement
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		held, err := tx.UserBadges(userID)
		if err != nil {
			return err
		}
		mine := make(map[string]struct{}, len(held))
		for _, b := range held {
			mine[b.BadgeName] = struct{}{}
		}
		total, err := tx.CountUsers()
		if err != nil {
			return err
		}
		holders, err := tx.BadgeHolderCounts()
		if err != nil {
			return err
		}

		for _, b := range s.Progress.Rules.Badges.All() {
			_, earned := mine[string(b.ID)]
			pct := 0
			if total > 0 {
				pct = int(holders[string(b.ID)] * 100 / total)
			}
			out = append(out, Achievement{
				Name:        string(b.ID),
				Icon:        b.Icon,
				Description: b.Description,
				Rarity:      b.Rarity.String(),
				XP:          b.XP,
				Earned:      earned,
				EarnedPct:   pct,
			})
		}
		return nil
	})
	return out, err
}

// SweepAll reconciles every known user, one transaction each, and reports how
// many badges were handed out. A failing user is logged and skipped.
func (s *BadgeService) SweepAll(ctx context.Context) (int, error) {
	var ids []string
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		ids, err = tx.UserIDs()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	awarded := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return awarded, err
		}
		res, err := s.Progress.act(ctx, id, "sweep", func(tx storage.Tx, us *userState, sess *progression.Session) (string, error) {
			return "", s.Progress.reconcile(tx, us, sess)
		})
		if err != nil {
			log.Printf("[BadgeSweep] Failed to reconcile %s: %v", id, err)
			continue
		}
		awarded += len(res.NewBadges)
	}
	if s.Progress.Metrics != nil {
		s.Progress.Metrics.ReconcileRuns.WithLabelValues("sweep").Inc()
	}
	return awarded, nil
}
