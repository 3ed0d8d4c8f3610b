package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campus-progression/models"
	"campus-progression/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *MemoryStore, fn func(tx Tx) error) {
	t.Helper()
	require.NoError(t, s.Transaction(context.Background(), fn))
}

func TestMemoryStore_EnsureProgressIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	var first, second *models.UserProgress
	run(t, s, func(tx Tx) error {
		var err error
		first, err = tx.EnsureProgress("u1")
		return err
	})
	run(t, s, func(tx Tx) error {
		var err error
		second, err = tx.EnsureProgress("u1")
		return err
	})
	assert.Equal(t, first.ID, second.ID)

	run(t, s, func(tx Tx) error {
		n, err := tx.CountUsers()
		assert.Equal(t, int64(1), n)
		return err
	})
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.Transaction(context.Background(), func(tx Tx) error {
		p, err := tx.EnsureProgress("u1")
		require.NoError(t, err)
		p.XP = 500
		require.NoError(t, tx.SaveProgress(p))
		require.NoError(t, tx.AwardBadge("u1", "Newbie", time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	run(t, s, func(tx Tx) error {
		n, err := tx.CountUsers()
		assert.Zero(t, n)
		badges, _ := tx.UserBadges("u1")
		assert.Empty(t, badges)
		return err
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	run(t, s, func(tx Tx) error {
		p, err := tx.EnsureProgress("u1")
		require.NoError(t, err)
		p.XP = 99 // not saved
		return nil
	})
	run(t, s, func(tx Tx) error {
		p, err := tx.EnsureProgress("u1")
		assert.Zero(t, p.XP)
		return err
	})
}

func TestMemoryStore_AwardBadgeOnce(t *testing.T) {
	s := NewMemoryStore()
	run(t, s, func(tx Tx) error {
		require.NoError(t, tx.AwardBadge("u1", "Newbie", time.Now()))
		require.NoError(t, tx.AwardBadge("u1", "Newbie", time.Now()))
		require.NoError(t, tx.AwardBadge("u2", "Newbie", time.Now()))
		badges, err := tx.UserBadges("u1")
		assert.Len(t, badges, 1)

		counts, _ := tx.BadgeHolderCounts()
		assert.Equal(t, int64(2), counts["Newbie"])
		return err
	})
}

func TestMemoryStore_LeaderboardOrder(t *testing.T) {
	s := NewMemoryStore()
	run(t, s, func(tx Tx) error {
		for _, u := range []struct {
			id string
			xp int64
		}{{"a", 10}, {"b", 300}, {"c", 10}, {"d", 50}} {
			p, err := tx.EnsureProgress(u.id)
			require.NoError(t, err)
			p.XP = u.xp
			require.NoError(t, tx.SaveProgress(p))
		}
		return nil
	})

	run(t, s, func(tx Tx) error {
		top, err := tx.Leaderboard(3)
		require.NoError(t, err)
		var ids []string
		for _, p := range top {
			ids = append(ids, p.ExternalUserID)
		}
		// ties keep creation order
		assert.Equal(t, []string{"b", "d", "a"}, ids)
		return nil
	})
}

func TestMemoryStore_CountersAndSkillInputs(t *testing.T) {
	s := NewMemoryStore()
	past := time.Now().Add(-48 * time.Hour)

	run(t, s, func(tx Tx) error {
		dsa := models.Skill{Name: "DSA"}
		require.NoError(t, tx.CreateSkill(&dsa))

		club := models.Club{Name: "Coding Club", Description: "code", ManagerID: "boss"}
		require.NoError(t, tx.CreateClub(&club))
		require.NoError(t, tx.CreateClubSkill(&models.ClubSkill{ClubID: club.ID, SkillID: dsa.ID, Points: 20}))
		require.NoError(t, tx.CreateMembership(&models.ClubMembership{ExternalUserID: "u1", ClubID: club.ID, Status: models.MembershipApproved}))

		ev := models.Event{ClubID: club.ID, Title: "Hack night", EventDate: past, XPReward: 30}
		require.NoError(t, tx.CreateEvent(&ev))
		require.NoError(t, tx.CreateRegistration(&models.EventRegistration{ExternalUserID: "u1", EventID: ev.ID}))
		require.NoError(t, tx.CreateFeedback(&models.Feedback{ExternalUserID: "u1", ClubID: club.ID, Content: "great"}))
		require.NoError(t, tx.CreateUserSkill(&models.UserSkill{ExternalUserID: "u1", SkillID: dsa.ID, Amount: 10, IsManual: true}))
		return nil
	})

	run(t, s, func(tx Tx) error {
		c, err := tx.Counters("u1")
		require.NoError(t, err)
		assert.Equal(t, progression.Counters{ApprovedClubs: 1, Registrations: 1, Feedback: 1}, c)

		boss, _ := tx.Counters("boss")
		assert.Equal(t, int64(1), boss.ManagedClubs)

		in, err := tx.SkillInputs("u1")
		require.NoError(t, err)
		// manual 10 + club 20 + event 20/2
		assert.Equal(t, int64(40), progression.Aggregate(in, time.Now())["DSA"])
		return nil
	})
}

func TestMemoryStore_AffiliationAndPopularity(t *testing.T) {
	s := NewMemoryStore()
	var a, b models.Club
	run(t, s, func(tx Tx) error {
		a = models.Club{Name: "A", Description: "a", ManagerID: "u1"}
		b = models.Club{Name: "B", Description: "b", ManagerID: "x"}
		require.NoError(t, tx.CreateClub(&a))
		require.NoError(t, tx.CreateClub(&b))
		m := models.ClubMembership{ExternalUserID: "u1", ClubID: b.ID}
		require.NoError(t, tx.CreateMembership(&m))
		assert.Equal(t, models.MembershipPending, m.Status)
		assert.Equal(t, "General", a.Category)

		require.NoError(t, tx.IncrementClubPopularity(b.ID, 1))
		require.NoError(t, tx.IncrementClubPopularity(a.ID, -3))
		return nil
	})

	run(t, s, func(tx Tx) error {
		ids, err := tx.AffiliatedClubIDs("u1")
		require.NoError(t, err)
		assert.Contains(t, ids, a.ID)
		assert.Contains(t, ids, b.ID)

		approved, _ := tx.ApprovedClubs("u1")
		assert.Empty(t, approved, "pending memberships are not approved")

		top, _ := tx.TopClubs(10)
		require.Len(t, top, 2)
		assert.Equal(t, "B", top[0].Name)
		assert.Zero(t, top[1].PopularityScore, "popularity never drops below zero")
		return nil
	})
}

func TestMemoryStore_DeleteMembership(t *testing.T) {
	s := NewMemoryStore()
	run(t, s, func(tx Tx) error {
		m := models.ClubMembership{ExternalUserID: "u1", ClubID: "c1"}
		require.NoError(t, tx.CreateMembership(&m))
		require.NoError(t, tx.DeleteMembership(m.ID))
		_, err := tx.GetMembership("u1", "c1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, tx.DeleteMembership(m.ID), ErrNotFound)
		return nil
	})
}

func TestMemoryStore_RegistrationsSince(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run(t, s, func(tx Tx) error {
		for i, at := range []time.Time{now.AddDate(0, 0, -100), now.AddDate(0, 0, -2), now} {
			r := models.EventRegistration{ExternalUserID: "u1", EventID: string(rune('a' + i)), RegisteredAt: at}
			require.NoError(t, tx.CreateRegistration(&r))
		}
		regs, err := tx.RegistrationsSince("u1", now.AddDate(0, 0, -90))
		assert.Len(t, regs, 2)
		return err
	})
}

func TestMemoryStore_CareersInCatalogOrder(t *testing.T) {
	s := NewMemoryStore()
	run(t, s, func(tx Tx) error {
		require.NoError(t, tx.CreateCareer(&models.Career{Name: "Zeta", RequiredSkills: []string{"A"}, Position: 0}))
		require.NoError(t, tx.CreateCareer(&models.Career{Name: "Alpha", RequiredSkills: []string{"B"}, Position: 1}))
		careers, err := tx.Careers()
		require.Len(t, careers, 2)
		assert.Equal(t, "Zeta", careers[0].Name)
		return err
	})
}

func TestMemoryStore_TransactionsSerialize(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Transaction(context.Background(), func(tx Tx) error {
				p, err := tx.EnsureProgress("u1")
				if err != nil {
					return err
				}
				p.XP++
				return tx.SaveProgress(p)
			})
		}()
	}
	wg.Wait()

	run(t, s, func(tx Tx) error {
		p, err := tx.EnsureProgress("u1")
		assert.Equal(t, int64(50), p.XP)
		return err
	})
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Transaction(ctx, func(tx Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_DeleteClubCascades(t *testing.T) {
	s := NewMemoryStore()
	var doomed, kept models.Club
	var doomedEvent, keptEvent models.Event
	run(t, s, func(tx Tx) error {
		doomed = models.Club{Name: "Doomed", Description: "d", ManagerID: "boss"}
		kept = models.Club{Name: "Kept", Description: "k", ManagerID: "boss"}
		require.NoError(t, tx.CreateClub(&doomed))
		require.NoError(t, tx.CreateClub(&kept))
		for _, c := range []models.Club{doomed, kept} {
			require.NoError(t, tx.CreateClubSkill(&models.ClubSkill{ClubID: c.ID, SkillID: "s", Points: 5}))
			require.NoError(t, tx.CreateMembership(&models.ClubMembership{ExternalUserID: "u1", ClubID: c.ID, Status: models.MembershipApproved}))
			require.NoError(t, tx.CreateFeedback(&models.Feedback{ExternalUserID: "u1", ClubID: c.ID, Content: "ok"}))
		}
		doomedEvent = models.Event{ClubID: doomed.ID, Title: "d", EventDate: time.Now()}
		keptEvent = models.Event{ClubID: kept.ID, Title: "k", EventDate: time.Now()}
		require.NoError(t, tx.CreateEvent(&doomedEvent))
		require.NoError(t, tx.CreateEvent(&keptEvent))
		require.NoError(t, tx.CreateRegistration(&models.EventRegistration{ExternalUserID: "u1", EventID: doomedEvent.ID}))
		return tx.CreateRegistration(&models.EventRegistration{ExternalUserID: "u1", EventID: keptEvent.ID})
	})

	// a failed transaction leaves everything in place
	boom := errors.New("boom")
	err := s.Transaction(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.DeleteClub(doomed.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)
	run(t, s, func(tx Tx) error {
		c, err := tx.Counters("u1")
		assert.Equal(t, progression.Counters{ApprovedClubs: 2, Registrations: 2, Feedback: 2}, c)
		return err
	})

	run(t, s, func(tx Tx) error { return tx.DeleteClub(doomed.ID) })
	run(t, s, func(tx Tx) error {
		c, err := tx.Counters("u1")
		require.NoError(t, err)
		assert.Equal(t, progression.Counters{ApprovedClubs: 1, Registrations: 1, Feedback: 1}, c)

		boss, _ := tx.Counters("boss")
		assert.Equal(t, int64(1), boss.ManagedClubs)

		in, _ := tx.SkillInputs("u1")
		require.Len(t, in.Memberships, 1)
		assert.Equal(t, kept.ID, in.Memberships[0].ClubID)

		_, err = tx.GetEvent(doomedEvent.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, tx.DeleteClub(doomed.ID), ErrNotFound)

		stats, _ := tx.ManagedClubStats("boss")
		require.Len(t, stats, 1)
		assert.Equal(t, ClubStats{Club: stats[0].Club, Members: 1, Events: 1, Feedback: 1}, stats[0])
		return nil
	})
}

func TestMemoryStore_DeleteEventAndUpcoming(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	var events []models.Event
	run(t, s, func(tx Tx) error {
		for _, d := range []int{3, -1, 1, 2} {
			e := models.Event{ClubID: "c", Title: "e", EventDate: now.AddDate(0, 0, d)}
			require.NoError(t, tx.CreateEvent(&e))
			require.NoError(t, tx.CreateRegistration(&models.EventRegistration{ExternalUserID: "u1", EventID: e.ID}))
			events = append(events, e)
		}
		return nil
	})

	run(t, s, func(tx Tx) error {
		up, err := tx.UpcomingEvents(now, 2)
		require.NoError(t, err)
		require.Len(t, up, 2)
		assert.Equal(t, events[2].ID, up[0].ID)
		assert.Equal(t, events[3].ID, up[1].ID)

		require.NoError(t, tx.DeleteEvent(events[2].ID))
		assert.ErrorIs(t, tx.DeleteEvent(events[2].ID), ErrNotFound)

		regs, err := tx.RegisteredEvents("u1")
		require.NoError(t, err)
		assert.Len(t, regs, 3)
		for _, e := range regs {
			assert.NotEqual(t, events[2].ID, e.ID)
		}
		return nil
	})
}
