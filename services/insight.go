package services

import (
	"bytes"
	"context"
	"fmt"

	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"

	"github.com/gosimple/slug"
)

// HeatmapDays is how far back the activity heatmap looks.
const HeatmapDays = 90

// completionStep is what each filled profile field adds to the completion score
const completionStep = 25

// InsightService answers the read-only questions about a user: skills,
// careers, club suggestions, profile completeness, activity and portfolio.
type InsightService struct {
	Progress    *ProgressionService
	Recommender *progression.Recommender
}

func NewInsightService(progress *ProgressionService) *InsightService {
	return &InsightService{
		Progress:    progress,
		Recommender: progression.NewRecommender(progress.Rules),
	}
}

func (s *InsightService) skillTotals(tx storage.Tx, userID string) (progression.SkillTotals, error) {
	in, err := tx.SkillInputs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load skill inputs for %s: %w", userID, err)
	}
	return progression.Aggregate(in, s.Progress.now()), nil
}

// Skills returns the user's aggregated skill points, highest first.
func (s *InsightService) Skills(ctx context.Context, userID string) ([]progression.SkillTotal, error) {
	var out []progression.SkillTotal
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		totals, err := s.skillTotals(tx, userID)
		if err != nil {
			return err
		}
		out = totals.Sorted()
		return nil
	})
	return out, err
}

func (s *InsightService) Careers(ctx context.Context, userID string) ([]progression.CareerMatch, error) {
	var out []progression.CareerMatch
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		totals, err := s.skillTotals(tx, userID)
		if err != nil {
			return err
		}
		careers, err := tx.Careers()
		if err != nil {
			return err
		}
		out = progression.MatchCareers(totals, careers)
		return nil
	})
	return out, err
}

// Recommendations suggests clubs the user has no tie to, from their declared interests.
func (s *InsightService) Recommendations(ctx context.Context, userID string) ([]progression.Recommendation, error) {
	out := []progression.Recommendation{}
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		prog, err := tx.EnsureProgress(userID)
		if err != nil {
			return err
		}
		if len(prog.Interests) == 0 {
			return nil
		}
		clubs, err := tx.ClubProfiles()
		if err != nil {
			return err
		}
		exclude, err := tx.AffiliatedClubIDs(userID)
		if err != nil {
			return err
		}
		if recs := s.Recommender.Recommend(prog.Interests, clubs, exclude); recs != nil {
			out = recs
		}
		return nil
	})
	return out, err
}

// ProfileCompletion scores username, email, college and interests at 25 each.
func (s *InsightService) ProfileCompletion(ctx context.Context, userID string) (int, error) {
	score := 0
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		prog, err := tx.EnsureProgress(userID)
		if err != nil {
			return err
		}
		score = profileCompletion(prog)
		return nil
	})
	return score, err
}

func profileCompletion(p *models.UserProgress) int {
	score := 0
	for _, filled := range []bool{p.Username != "", p.Email != "", p.College != "", len(p.Interests) > 0} {
		if filled {
			score += completionStep
		}
	}
	return score
}

// Heatmap counts event registrations per UTC day (YYYY-MM-DD) over the last HeatmapDays.
func (s *InsightService) Heatmap(ctx context.Context, userID string) (map[string]int, error) {
	out := map[string]int{}
	since := progression.Day(s.Progress.now()).AddDate(0, 0, -HeatmapDays)
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		regs, err := tx.RegistrationsSince(userID, since)
		if err != nil {
			return err
		}
		for _, r := range regs {
			out[r.RegisteredAt.UTC().Format("2006-01-02")]++
		}
		return nil
	})
	return out, err
}

// Portfolio renders the user's impact report as plain text and the file name
// to serve it under.
func (s *InsightService) Portfolio(ctx context.Context, userID string) (string, []byte, error) {
	var buf bytes.Buffer
	var name string
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		us, err := s.Progress.load(tx, userID)
		if err != nil {
			return err
		}
		totals, err := s.skillTotals(tx, userID)
		if err != nil {
			return err
		}
		clubs, err := tx.ApprovedClubs(userID)
		if err != nil {
			return err
		}

		p := us.prog
		name = p.Username
		if name == "" {
			name = userID
		}
		info := s.Progress.Rules.Levels.LevelOf(us.state.XP)

		fmt.Fprintln(&buf, "CampusConnect Impact Report")
		fmt.Fprintln(&buf)
		fmt.Fprintf(&buf, "Student Profile: %s\n", name)
		fmt.Fprintf(&buf, "Email: %s\n", orNA(p.Email))
		fmt.Fprintf(&buf, "College: %s\n", orNA(p.College))
		fmt.Fprintf(&buf, "Level: %d (%s), %d XP\n", info.Level, info.Name, us.state.XP)
		fmt.Fprintf(&buf, "Streak: %d day(s)\n", us.state.StreakCount)

		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, "Skill Profile")
		sorted := totals.Sorted()
		if len(sorted) == 0 {
			fmt.Fprintln(&buf, "No skills detected yet.")
		}
		for _, t := range sorted {
			fmt.Fprintf(&buf, "- %s: %d Points\n", t.Skill, t.Points)
		}

		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, "Achievements & Badges")
		if len(us.badges) == 0 {
			fmt.Fprintln(&buf, "No badges earned yet.")
		}
		for _, b := range us.badges {
			v := s.Progress.badgeView(b)
			rarity := v.Rarity
			if rarity == "" {
				rarity = progression.RarityCommon.String()
			}
			fmt.Fprintf(&buf, "- %s %s (%s)\n", v.Icon, v.Name, rarity)
		}

		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, "Club Memberships")
		if len(clubs) == 0 {
			fmt.Fprintln(&buf, "No clubs joined yet.")
		}
		for _, c := range clubs {
			fmt.Fprintf(&buf, "- %s (%s)\n", c.Name, c.Category)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return slug.Make(name) + "_portfolio.txt", buf.Bytes(), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// DashboardUpcoming is how many upcoming events the dashboard lists.
const DashboardUpcoming = 5

type Dashboard struct {
	Clubs    []models.Club       `json:"clubs"`
	Events   []models.Event      `json:"events"`
	Upcoming []models.Event      `json:"upcoming"`
	Managed  []storage.ClubStats `json:"managed"`
}

// Dashboard gathers the user's clubs and registrations, the next events on
// campus and, for clubs they manage, member/event/feedback counts.
func (s *InsightService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	d := &Dashboard{
		Clubs:    []models.Club{},
		Events:   []models.Event{},
		Upcoming: []models.Event{},
		Managed:  []storage.ClubStats{},
	}
	err := s.Progress.Store.Transaction(ctx, func(tx storage.Tx) error {
		clubs, err := tx.ApprovedClubs(userID)
		if err != nil {
			return err
		}
		events, err := tx.RegisteredEvents(userID)
		if err != nil {
			return err
		}
		upcoming, err := tx.UpcomingEvents(s.Progress.now(), DashboardUpcoming)
		if err != nil {
			return err
		}
		managed, err := tx.ManagedClubStats(userID)
		if err != nil {
			return err
		}
		d.Clubs = append(d.Clubs, clubs...)
		d.Events = append(d.Events, events...)
		d.Upcoming = append(d.Upcoming, upcoming...)
		d.Managed = append(d.Managed, managed...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
