package services

import (
	"testing"
	"time"

	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Streak(t *testing.T) {
	f := newFixture(t)

	var res *ActivityResult
	var err error
	for day := 1; day <= 7; day++ {
		res, err = f.progress.Login(f.ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, day, res.Streak)
		if day < 7 {
			assert.Empty(t, res.NewBadges)
			f.tick(24 * time.Hour)
		}
	}
	assert.Equal(t, []progression.BadgeID{progression.BadgeStreak7}, res.NewBadges)
	assert.Equal(t, int64(60), res.XP)

	// twice on the same day counts once
	f.tick(2 * time.Hour)
	res, err = f.progress.Login(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)

	f.tick(48 * time.Hour)
	res, err = f.progress.Login(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Empty(t, res.NewBadges)
	assert.Contains(t, res.Message, "1 day streak")
}

func TestGrantXP(t *testing.T) {
	f := newFixture(t)

	_, err := f.progress.GrantXP(f.ctx, "u1", 0, "")
	assert.ErrorIs(t, err, progression.ErrInvalidAmount)
	assert.Equal(t, 1.0, f.counter(t, "campus_action_failures_total", "admin_grant"))

	res, err := f.progress.GrantXP(f.ctx, "u1", 130, "hackathon")
	require.NoError(t, err)
	assert.Equal(t, int64(130), res.XP)
	assert.Equal(t, 3, res.Level.Level)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 130.0, f.counter(t, "campus_xp_granted_total", "hackathon"))
	assert.Equal(t, 1.0, f.counter(t, "campus_level_ups_total", ""))

	f.tx(t, func(tx storage.Tx) error {
		p, err := tx.EnsureProgress("u1")
		assert.Equal(t, int64(130), p.Points)
		assert.NotNil(t, p.LastLevelUpAt)
		return err
	})
}

func TestGetProgress_CatchesUpBadges(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, f.clubID(t, "Coding Club"), "Meetup", 0)
	f.tx(t, func(tx storage.Tx) error {
		return tx.CreateRegistration(&models.EventRegistration{ExternalUserID: "u1", EventID: ev, RegisteredAt: f.now})
	})

	v, err := f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []progression.BadgeID{progression.BadgeNewbie}, v.NewBadges)
	assert.Equal(t, int64(10), v.XP)
	require.Len(t, v.Badges, 1)
	assert.Equal(t, "🌱", v.Badges[0].Icon)
	assert.Equal(t, "common", v.Badges[0].Rarity)

	v, err = f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, v.NewBadges)
	assert.Equal(t, int64(10), v.XP)
	assert.Len(t, v.Badges, 1)
}

func TestGetProgress_TopBadges(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")

	_, err := f.activity.JoinClub(f.ctx, "u1", coding)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.activity.SubmitFeedback(f.ctx, "u1", coding, "nice")
		require.NoError(t, err)
	}
	_, _, err = f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Chess", Description: "board games"})
	require.NoError(t, err)
	_, err = f.activity.RegisterForEvent(f.ctx, "u1", f.newEvent(t, coding, "Meetup", 0))
	require.NoError(t, err)

	v, err := f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, v.Badges, 4)
	require.Len(t, v.TopBadges, 3)
	assert.Equal(t, string(progression.BadgeClubLeader), v.TopBadges[0].Name)
	assert.Equal(t, string(progression.BadgeFeedbackGuru), v.TopBadges[1].Name)
}

func TestGetProgress_NewUser(t *testing.T) {
	f := newFixture(t)
	v, err := f.progress.GetProgress(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, v.XP)
	assert.Equal(t, 1, v.Level.Level)
	assert.Empty(t, v.Badges)
	assert.NotNil(t, v.TopBadges)
}

func TestBadges_ListInAwardOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.activity.JoinClub(f.ctx, "u1", f.clubID(t, "Coding Club"))
	require.NoError(t, err)
	_, _, err = f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Chess", Description: "board games"})
	require.NoError(t, err)

	badges, err := f.progress.Badges(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, string(progression.BadgeFirstClubJoined), badges[0].Name)
	assert.Equal(t, string(progression.BadgeClubLeader), badges[1].Name)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	for id, xp := range map[string]int64{"u1": 100, "u2": 300, "u3": 50} {
		_, err := f.progress.GrantXP(f.ctx, id, xp, "")
		require.NoError(t, err)
	}
	_, err := f.activity.JoinClub(f.ctx, "u3", f.clubID(t, "Music Society"))
	require.NoError(t, err)

	board, err := f.progress.Leaderboard(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, board.Users, 3)
	assert.Equal(t, "u2", board.Users[0].UserID)
	assert.Equal(t, 1, board.Users[0].Rank)
	assert.Equal(t, "u1", board.Users[1].UserID)
	// 50 granted, 25 for joining and 20 for the badge
	assert.Equal(t, "u3", board.Users[2].UserID)
	assert.Equal(t, int64(95), board.Users[2].XP)
	assert.Equal(t, 1, board.Users[2].Badges)
	assert.Equal(t, 3, board.Users[2].Rank)

	require.Len(t, board.Clubs, len(sampleClubs))
	assert.Equal(t, "Music Society", board.Clubs[0].Name)

	board, err = f.progress.Leaderboard(f.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, board.Users, 1)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.newEvent(t, f.clubID(t, "Coding Club"), "Meetup", 0)
	_, err := f.progress.Login(f.ctx, "u1")
	require.NoError(t, err)

	st, err := f.progress.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Stats{Users: 2, Clubs: int64(len(sampleClubs)), Events: 1}, st)
}

func TestBadgesSince(t *testing.T) {
	f := newFixture(t)
	_, err := f.activity.JoinClub(f.ctx, "u1", f.clubID(t, "Coding Club"))
	require.NoError(t, err)

	_, cursor, err := f.progress.BadgesSince(f.ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, f.now, cursor)

	badges, latest, err := f.progress.BadgesSince(f.ctx, "u1", cursor)
	require.NoError(t, err)
	assert.Empty(t, badges)
	assert.Equal(t, cursor, latest)

	f.tick(time.Minute)
	_, _, err = f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Chess", Description: "board games"})
	require.NoError(t, err)

	badges, latest, err = f.progress.BadgesSince(f.ctx, "u1", cursor)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, string(progression.BadgeClubLeader), badges[0].Name)
	assert.Equal(t, "👑", badges[0].Icon)
	assert.Equal(t, f.now, latest)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u1", "Ada", "ada@campus.edu"))
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u2", "alan", "turing@campus.edu"))
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u3", "grace", "grace@navy.mil"))
	_, err := f.progress.GrantXP(f.ctx, "u2", 130, "")
	require.NoError(t, err)

	hits, err := f.progress.SearchUsers(f.ctx, "CAMPUS", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "u1", hits[0].ExternalUserID)
	assert.Equal(t, 3, hits[1].Level)

	hits, err = f.progress.SearchUsers(f.ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = f.progress.SearchUsers(f.ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
