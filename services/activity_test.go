package services

import (
	"testing"

	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAccount(t *testing.T) {
	f := newFixture(t)

	res, err := f.activity.RegisterAccount(f.ctx, "u1", AccountInput{
		Username:  " ada ",
		Email:     "ada@campus.edu",
		Interests: []string{"Coding", " ", "Coding", "Music"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.XP)
	assert.Equal(t, int64(10), res.XPGained)
	assert.Equal(t, 1, res.Level.Level)
	assert.Contains(t, res.Message, "+10 XP")

	f.tx(t, func(tx storage.Tx) error {
		p, err := tx.EnsureProgress("u1")
		assert.Equal(t, "ada", p.Username)
		assert.Equal(t, []string{"Coding", "Music"}, p.Interests)
		assert.NotNil(t, p.RegisteredAt)
		return err
	})

	_, err = f.activity.RegisterAccount(f.ctx, "u1", AccountInput{Username: "again"})
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestRegisterAccount_AfterMirroredProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u1", "ada", ""))

	_, err := f.activity.RegisterAccount(f.ctx, "u1", AccountInput{Username: "ada", Email: "ada@campus.edu"})
	require.NoError(t, err)
}

func TestMirrorProfile_BlankNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u1", "ada", "ada@campus.edu"))
	require.NoError(t, f.activity.MirrorProfile(f.ctx, "u1", "", "  "))

	f.tx(t, func(tx storage.Tx) error {
		p, err := tx.EnsureProgress("u1")
		assert.Equal(t, "ada", p.Username)
		assert.Equal(t, "ada@campus.edu", p.Email)
		assert.Zero(t, p.XP)
		return err
	})
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	college := " MIT "
	p, err := f.activity.UpdateProfile(f.ctx, "u1", ProfileInput{College: &college, Interests: []string{"Design"}})
	require.NoError(t, err)
	assert.Equal(t, "MIT", p.College)
	assert.Equal(t, []string{"Design"}, p.Interests)

	// nil fields are left alone
	p, err = f.activity.UpdateProfile(f.ctx, "u1", ProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "MIT", p.College)
	assert.Equal(t, []string{"Design"}, p.Interests)
	assert.Zero(t, p.XP)
}

func TestCreateClub(t *testing.T) {
	f := newFixture(t)

	club, res, err := f.activity.CreateClub(f.ctx, "u1", ClubInput{
		Name:        "Hack Society",
		Description: "Weekly coding nights",
		Category:    "Technology",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", club.ManagerID)
	// 50 for the club and 50 for Club Leader
	assert.Equal(t, int64(100), res.XP)
	assert.Equal(t, []progression.BadgeID{progression.BadgeClubLeader}, res.NewBadges)
	assert.True(t, res.LeveledUp)
	assert.Contains(t, res.Message, "Level Up!")
	assert.Equal(t, 1, res.Streak)

	f.tx(t, func(tx storage.Tx) error {
		c, err := tx.Counters("u1")
		assert.Equal(t, int64(1), c.ManagedClubs)
		return err
	})
}

func TestCreateClub_AssignsSkillsFromText(t *testing.T) {
	f := newFixture(t)
	club, _, err := f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Debate Circle", Description: "Practice for every speaker"})
	require.NoError(t, err)
	require.NoError(t, f.store.Transaction(f.ctx, func(tx storage.Tx) error {
		return tx.CreateMembership(&models.ClubMembership{ExternalUserID: "u2", ClubID: club.ID, Status: models.MembershipApproved})
	}))

	skills, err := f.insights.Skills(f.ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []progression.SkillTotal{
		{Skill: "Public Speaking", Points: 25},
		{Skill: "Teamwork", Points: 5},
	}, skills)
}

func TestJoinClub(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")
	music := f.clubID(t, "Music Society")

	res, err := f.activity.JoinClub(f.ctx, "u1", coding)
	require.NoError(t, err)
	// 25 for joining and 20 for First Club Joined
	assert.Equal(t, int64(45), res.XP)
	assert.Equal(t, []progression.BadgeID{progression.BadgeFirstClubJoined}, res.NewBadges)
	assert.Equal(t, int64(1), f.club(t, coding).PopularityScore)

	res, err = f.activity.JoinClub(f.ctx, "u1", music)
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)
	assert.Equal(t, int64(70), res.XP)
	assert.True(t, res.LeveledUp)

	_, err = f.activity.JoinClub(f.ctx, "u1", coding)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, int64(1), f.club(t, coding).PopularityScore)
}

func TestJoinClub_Rejections(t *testing.T) {
	f := newFixture(t)

	club, _, err := f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Mine", Description: "my club"})
	require.NoError(t, err)
	_, err = f.activity.JoinClub(f.ctx, "u1", club.ID)
	assert.ErrorIs(t, err, ErrManagerCannotJoin)

	_, err = f.activity.JoinClub(f.ctx, "u2", "no-such-club")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLeaveClub(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")

	assert.ErrorIs(t, f.activity.LeaveClub(f.ctx, "u1", coding), ErrNotMember)

	_, err := f.activity.JoinClub(f.ctx, "u1", coding)
	require.NoError(t, err)
	require.NoError(t, f.activity.LeaveClub(f.ctx, "u1", coding))
	assert.Zero(t, f.club(t, coding).PopularityScore)

	// XP and badges stay; re-joining does not hand out the badge again
	res, err := f.activity.JoinClub(f.ctx, "u1", coding)
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)
	assert.Equal(t, int64(70), res.XP)

	assert.ErrorIs(t, f.activity.LeaveClub(f.ctx, SampleManagerID, coding), ErrManagerCannotLeave)
}

func TestRegisterForEvent(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")

	var events []string
	for i := 0; i < 5; i++ {
		events = append(events, f.newEvent(t, coding, "Meetup", 0))
	}

	res, err := f.activity.RegisterForEvent(f.ctx, "u1", events[0])
	require.NoError(t, err)
	// default event reward 30 plus Newbie 10
	assert.Equal(t, int64(40), res.XP)
	assert.Equal(t, []progression.BadgeID{progression.BadgeNewbie}, res.NewBadges)

	_, err = f.activity.RegisterForEvent(f.ctx, "u1", events[0])
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	for _, id := range events[1:4] {
		res, err = f.activity.RegisterForEvent(f.ctx, "u1", id)
		require.NoError(t, err)
		assert.Empty(t, res.NewBadges)
	}

	res, err = f.activity.RegisterForEvent(f.ctx, "u1", events[4])
	require.NoError(t, err)
	assert.Equal(t, []progression.BadgeID{progression.BadgeSocialButterfly}, res.NewBadges)
	assert.Equal(t, int64(5*30+10+30), res.XP)
}

func TestRegisterForEvent_CustomReward(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, f.clubID(t, "Coding Club"), "Hackathon", 80)

	res, err := f.activity.RegisterForEvent(f.ctx, "u1", ev)
	require.NoError(t, err)
	assert.Equal(t, int64(90), res.XP)
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.activity.CreateEvent(f.ctx, "u1", EventInput{ClubID: "missing", Title: "x", EventDate: f.now})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ev, res, err := f.activity.CreateEvent(f.ctx, "u1", EventInput{ClubID: f.clubID(t, "Debate Union"), Title: " Finals ", EventDate: f.now})
	require.NoError(t, err)
	assert.Equal(t, "Finals", ev.Title)
	assert.Equal(t, "Beginner", ev.Difficulty)
	assert.Equal(t, int64(DefaultEventXP), ev.XPReward)
	assert.Equal(t, int64(20), res.XP)
}

func TestCreateEvent_ExplicitZeroReward(t *testing.T) {
	f := newFixture(t)
	zero := int64(0)
	ev, _, err := f.activity.CreateEvent(f.ctx, "host", EventInput{
		ClubID:    f.clubID(t, "Debate Union"),
		Title:     "Open practice",
		EventDate: f.now.AddDate(0, 0, 1),
		XPReward:  &zero,
	})
	require.NoError(t, err)
	assert.Zero(t, ev.XPReward)

	// only Newbie pays out
	res, err := f.activity.RegisterForEvent(f.ctx, "u1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.XP)
	assert.Equal(t, []progression.BadgeID{progression.BadgeNewbie}, res.NewBadges)
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")

	_, err := f.activity.SubmitFeedback(f.ctx, "u1", coding, "   ")
	assert.ErrorIs(t, err, ErrEmptyFeedback)

	for i := 0; i < 4; i++ {
		res, err := f.activity.SubmitFeedback(f.ctx, "u1", coding, "great session")
		require.NoError(t, err)
		assert.Empty(t, res.NewBadges)
	}
	res, err := f.activity.SubmitFeedback(f.ctx, "u1", coding, "great session")
	require.NoError(t, err)
	assert.Equal(t, []progression.BadgeID{progression.BadgeFeedbackGuru}, res.NewBadges)
	// 5 x 10 plus Feedback Guru 25
	assert.Equal(t, int64(75), res.XP)

	_, err = f.activity.SubmitFeedback(f.ctx, "u1", "missing", "hello")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddSkills(t *testing.T) {
	f := newFixture(t)

	res, err := f.activity.AddSkills(f.ctx, "u1", []string{"DSA", "DSA", " Music ", "Underwater Basket Weaving"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.XP)
	assert.Contains(t, res.Message, "2 skills added")

	_, err = f.activity.AddSkills(f.ctx, "u1", []string{"DSA"})
	assert.ErrorIs(t, err, ErrNoNewSkills)

	skills, err := f.insights.Skills(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []progression.SkillTotal{
		{Skill: "DSA", Points: ManualSkillPoints},
		{Skill: "Music", Points: ManualSkillPoints},
	}, skills)
}

func TestRewardsFromRules(t *testing.T) {
	f := newFixture(t)
	rules, err := progression.ParseRules([]byte("rewards:\n  join_club: 0\n"))
	require.NoError(t, err)
	f.progress.Rules = rules
	f.progress.Ledger = progression.NewLedger(rules)

	res, err := f.activity.JoinClub(f.ctx, "u1", f.clubID(t, "Coding Club"))
	require.NoError(t, err)
	// only the badge pays
	assert.Equal(t, int64(20), res.XP)
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, cleanTags([]string{" a", "", "b", "a "}))
	assert.Empty(t, cleanTags(nil))
}

func TestDeleteClub_CascadeKeepsEarnedProgress(t *testing.T) {
	f := newFixture(t)
	coding := f.clubID(t, "Coding Club")
	_, err := f.activity.UpdateProfile(f.ctx, "u2", ProfileInput{Interests: []string{"coding"}})
	require.NoError(t, err)

	// 25 + First Club Joined 20
	_, err = f.activity.JoinClub(f.ctx, "u1", coding)
	require.NoError(t, err)
	// 30 + Newbie 10
	ev := f.newEvent(t, coding, "Hack night", 0)
	_, err = f.activity.RegisterForEvent(f.ctx, "u1", ev)
	require.NoError(t, err)
	_, err = f.activity.SubmitFeedback(f.ctx, "u1", coding, "great mentors")
	require.NoError(t, err)

	skills, err := f.insights.Skills(f.ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, skills)

	assert.ErrorIs(t, f.activity.DeleteClub(f.ctx, "u1", coding), ErrNotClubManager)
	assert.ErrorIs(t, f.activity.DeleteClub(f.ctx, "u1", "missing"), storage.ErrNotFound)
	require.NoError(t, f.activity.DeleteClub(f.ctx, SampleManagerID, coding))
	assert.ErrorIs(t, f.activity.DeleteClub(f.ctx, SampleManagerID, coding), storage.ErrNotFound)

	view, err := f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(95), view.XP)
	assert.Empty(t, view.NewBadges)
	names := []string{}
	for _, b := range view.Badges {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t, []string{string(progression.BadgeFirstClubJoined), string(progression.BadgeNewbie)}, names)

	// skills from the deleted club stop counting
	skills, err = f.insights.Skills(f.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, skills)

	recs, err := f.insights.Recommendations(f.ctx, "u2")
	require.NoError(t, err)
	for _, r := range recs {
		assert.NotEqual(t, coding, r.Club.ID)
	}

	f.tx(t, func(tx storage.Tx) error {
		c, err := tx.Counters("u1")
		require.NoError(t, err)
		assert.Equal(t, progression.Counters{}, c)

		c, err = tx.Counters(SampleManagerID)
		assert.Equal(t, int64(len(sampleClubs)-1), c.ManagedClubs)

		_, getErr := tx.GetEvent(ev)
		assert.ErrorIs(t, getErr, storage.ErrNotFound)
		return err
	})
}

func TestDeleteClub_ManagerKeepsClubLeader(t *testing.T) {
	f := newFixture(t)
	club, _, err := f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Hack Society", Description: "coding nights"})
	require.NoError(t, err)
	require.NoError(t, f.activity.DeleteClub(f.ctx, "u1", club.ID))

	view, err := f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.XP)
	require.Len(t, view.Badges, 1)
	assert.Equal(t, string(progression.BadgeClubLeader), view.Badges[0].Name)

	// the name is free again
	_, _, err = f.activity.CreateClub(f.ctx, "u1", ClubInput{Name: "Hack Society", Description: "coding nights"})
	assert.NoError(t, err)
}

func TestDeleteEvent(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, f.clubID(t, "Coding Club"), "Hack night", 0)
	_, err := f.activity.RegisterForEvent(f.ctx, "u1", ev)
	require.NoError(t, err)

	assert.ErrorIs(t, f.activity.DeleteEvent(f.ctx, "u1", ev), ErrNotEventCreator)
	require.NoError(t, f.activity.DeleteEvent(f.ctx, "host", ev))
	assert.ErrorIs(t, f.activity.DeleteEvent(f.ctx, "host", ev), storage.ErrNotFound)

	_, err = f.activity.RegisterForEvent(f.ctx, "u1", ev)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	view, err := f.progress.GetProgress(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), view.XP)
	f.tx(t, func(tx storage.Tx) error {
		events, err := tx.RegisteredEvents("u1")
		assert.Empty(t, events)
		return err
	})
}
