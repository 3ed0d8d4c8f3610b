package services

import (
	"context"
	"testing"
	"time"

	"campus-progression/metrics"
	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx      context.Context
	store    *storage.MemoryStore
	metrics  *metrics.Metrics
	progress *ProgressionService
	catalog  *CatalogService
	activity *ActivityService
	badges   *BadgeService
	insights *InsightService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	rules := progression.DefaultRules()
	m := metrics.New()

	f := &fixture{
		ctx:     context.Background(),
		store:   store,
		metrics: m,
		now:     time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	f.progress = NewProgressionService(store, rules, m)
	f.progress.Now = func() time.Time { return f.now }
	f.catalog = NewCatalogService(store, rules)
	f.activity = NewActivityService(f.progress, f.catalog)
	f.badges = NewBadgeService(f.progress)
	f.insights = NewInsightService(f.progress)

	require.NoError(t, f.catalog.SeedBadgeTypes(f.ctx))
	require.NoError(t, f.catalog.SeedSamples(f.ctx))
	return f
}

func (f *fixture) tick(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) tx(t *testing.T, fn func(tx storage.Tx) error) {
	t.Helper()
	require.NoError(t, f.store.Transaction(f.ctx, fn))
}

// clubID looks a seeded club up by name.
func (f *fixture) clubID(t *testing.T, name string) string {
	t.Helper()
	var id string
	f.tx(t, func(tx storage.Tx) error {
		clubs, err := tx.ClubProfiles()
		for _, c := range clubs {
			if c.Name == name {
				id = c.ID
			}
		}
		return err
	})
	require.NotEmpty(t, id, "club %q not seeded", name)
	return id
}

func (f *fixture) club(t *testing.T, id string) models.Club {
	t.Helper()
	var club models.Club
	f.tx(t, func(tx storage.Tx) error {
		c, err := tx.GetClub(id)
		if err == nil {
			club = *c
		}
		return err
	})
	return club
}

// newEvent has "host" create an event in the given club, a week out.
// An xp of 0 leaves the reward at its default.
func (f *fixture) newEvent(t *testing.T, clubID, title string, xp int64) string {
	t.Helper()
	in := EventInput{
		ClubID:    clubID,
		Title:     title,
		EventDate: f.now.AddDate(0, 0, 7),
	}
	if xp > 0 {
		in.XPReward = &xp
	}
	ev, _, err := f.activity.CreateEvent(f.ctx, "host", in)
	require.NoError(t, err)
	return ev.ID
}

// counter sums the samples of a counter family whose labels include label.
// An empty label sums them all.
func (f *fixture) counter(t *testing.T, name, label string) float64 {
	t.Helper()
	families, err := f.metrics.Registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := label == ""
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					match = true
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
