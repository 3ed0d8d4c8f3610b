package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-progression/models"
	"campus-progression/progression"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Transactions are fully
// serialized and roll back by restoring a snapshot, which is enough for local
// runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{}, now: time.Now}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memTx{d: s.data, now: s.now}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type memData struct {
	progress      []models.UserProgress
	badges        []models.UserBadge
	badgeTypes    []models.BadgeType
	clubs         []models.Club
	memberships   []models.ClubMembership
	clubSkills    []models.ClubSkill
	events        []models.Event
	registrations []models.EventRegistration
	feedback      []models.Feedback
	messages      []models.Message
	skills        []models.Skill
	userSkills    []models.UserSkill
	careers       []models.Career
}

func (d *memData) clone() *memData {
	c := &memData{
		progress:      append([]models.UserProgress(nil), d.progress...),
		badges:        append([]models.UserBadge(nil), d.badges...),
		badgeTypes:    append([]models.BadgeType(nil), d.badgeTypes...),
		clubs:         append([]models.Club(nil), d.clubs...),
		memberships:   append([]models.ClubMembership(nil), d.memberships...),
		clubSkills:    append([]models.ClubSkill(nil), d.clubSkills...),
		events:        append([]models.Event(nil), d.events...),
		registrations: append([]models.EventRegistration(nil), d.registrations...),
		feedback:      append([]models.Feedback(nil), d.feedback...),
		messages:      append([]models.Message(nil), d.messages...),
		skills:        append([]models.Skill(nil), d.skills...),
		userSkills:    append([]models.UserSkill(nil), d.userSkills...),
		careers:       append([]models.Career(nil), d.careers...),
	}
	for i := range c.progress {
		c.progress[i].Interests = append([]string(nil), c.progress[i].Interests...)
	}
	return c
}

type memTx struct {
	d   *memData
	now func() time.Time
}

func (t *memTx) EnsureProgress(userID string) (*models.UserProgress, error) {
	for _, p := range t.d.progress {
		if p.ExternalUserID == userID {
			cp := p
			cp.Interests = append([]string(nil), p.Interests...)
			return &cp, nil
		}
	}
	now := t.now()
	p := models.UserProgress{ID: uuid.NewString(), ExternalUserID: userID}
	p.CreatedAt, p.UpdatedAt = now, now
	t.d.progress = append(t.d.progress, p)
	cp := p
	return &cp, nil
}

func (t *memTx) SaveProgress(p *models.UserProgress) error {
	for i := range t.d.progress {
		if t.d.progress[i].ExternalUserID == p.ExternalUserID {
			saved := *p
			saved.Interests = append([]string(nil), p.Interests...)
			saved.UpdatedAt = t.now()
			t.d.progress[i] = saved
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) Leaderboard(limit int) ([]models.UserProgress, error) {
	users := append([]models.UserProgress(nil), t.d.progress...)
	// progress is kept in creation order, so a stable sort breaks ties by it
	sort.SliceStable(users, func(i, j int) bool { return users[i].XP > users[j].XP })
	if limit >= 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (t *memTx) UserIDs() ([]string, error) {
	ids := make([]string, 0, len(t.d.progress))
	for _, p := range t.d.progress {
		ids = append(ids, p.ExternalUserID)
	}
	return ids, nil
}

func (t *memTx) SearchUsers(query string, limit int) ([]models.UserProgress, error) {
	term := strings.ToLower(strings.TrimSpace(query))
	var out []models.UserProgress
	for _, p := range t.d.progress {
		if term == "" || strings.Contains(strings.ToLower(p.Username), term) || strings.Contains(strings.ToLower(p.Email), term) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) CountUsers() (int64, error) {
	return int64(len(t.d.progress)), nil
}

func (t *memTx) UserBadges(userID string) ([]models.UserBadge, error) {
	var out []models.UserBadge
	for _, b := range t.d.badges {
		if b.ExternalUserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) AwardBadge(userID, badge string, at time.Time) error {
	for _, b := range t.d.badges {
		if b.ExternalUserID == userID && b.BadgeName == badge {
			return nil
		}
	}
	t.d.badges = append(t.d.badges, models.UserBadge{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		BadgeName:      badge,
		AwardedAt:      at,
	})
	return nil
}

func (t *memTx) BadgeHolderCounts() (map[string]int64, error) {
	out := map[string]int64{}
	for _, b := range t.d.badges {
		out[b.BadgeName]++
	}
	return out, nil
}

func (t *memTx) UpsertBadgeTypes(types []models.BadgeType) error {
	for _, bt := range types {
		replaced := false
		for i := range t.d.badgeTypes {
			if t.d.badgeTypes[i].Code == bt.Code {
				bt.ID = t.d.badgeTypes[i].ID
				t.d.badgeTypes[i] = bt
				replaced = true
				break
			}
		}
		if !replaced {
			if bt.ID == "" {
				bt.ID = uuid.NewString()
			}
			t.d.badgeTypes = append(t.d.badgeTypes, bt)
		}
	}
	return nil
}

// BadgeTypes exposes the seeded catalog rows; only the memory store needs it, for tests.
func (s *MemoryStore) BadgeTypes() []models.BadgeType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BadgeType(nil), s.data.badgeTypes...)
}

func (t *memTx) Counters(userID string) (progression.Counters, error) {
	var c progression.Counters
	for _, m := range t.d.memberships {
		if m.ExternalUserID == userID && m.Status == models.MembershipApproved {
			c.ApprovedClubs++
		}
	}
	for _, r := range t.d.registrations {
		if r.ExternalUserID == userID {
			c.Registrations++
		}
	}
	for _, f := range t.d.feedback {
		if f.ExternalUserID == userID {
			c.Feedback++
		}
	}
	for _, club := range t.d.clubs {
		if club.ManagerID == userID {
			c.ManagedClubs++
		}
	}
	return c, nil
}

func (t *memTx) skillName(id string) string {
	for _, s := range t.d.skills {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (t *memTx) clubSkillsOf(clubID string) []progression.ClubSkill {
	var out []progression.ClubSkill
	for _, cs := range t.d.clubSkills {
		if cs.ClubID == clubID {
			out = append(out, progression.ClubSkill{Skill: t.skillName(cs.SkillID), Points: cs.Points})
		}
	}
	return out
}

func (t *memTx) SkillInputs(userID string) (progression.SkillInputs, error) {
	var in progression.SkillInputs
	for _, us := range t.d.userSkills {
		if us.ExternalUserID == userID {
			in.Manual = append(in.Manual, progression.SkillPoint{
				Skill:  t.skillName(us.SkillID),
				Amount: us.Amount,
				Source: progression.SourceManual,
			})
		}
	}
	for _, m := range t.d.memberships {
		if m.ExternalUserID == userID {
			in.Memberships = append(in.Memberships, progression.Membership{
				ClubID:   m.ClubID,
				Approved: m.Status == models.MembershipApproved,
				Skills:   t.clubSkillsOf(m.ClubID),
			})
		}
	}
	for _, r := range t.d.registrations {
		if r.ExternalUserID != userID {
			continue
		}
		for _, e := range t.d.events {
			if e.ID == r.EventID {
				in.Attendances = append(in.Attendances, progression.Attendance{
					EventID:    e.ID,
					EventDate:  e.EventDate,
					ClubSkills: t.clubSkillsOf(e.ClubID),
				})
			}
		}
	}
	return in, nil
}

func (t *memTx) Careers() ([]progression.Career, error) {
	rows := append([]models.Career(nil), t.d.careers...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].Name < rows[j].Name
	})
	out := make([]progression.Career, 0, len(rows))
	for _, c := range rows {
		out = append(out, progression.Career{
			Name:           c.Name,
			Description:    c.Description,
			RequiredSkills: append([]string(nil), c.RequiredSkills...),
		})
	}
	return out, nil
}

func (t *memTx) ClubProfiles() ([]progression.ClubProfile, error) {
	out := make([]progression.ClubProfile, 0, len(t.d.clubs))
	for _, c := range t.d.clubs {
		out = append(out, progression.ClubProfile{ID: c.ID, Name: c.Name, Description: c.Description, Category: c.Category})
	}
	return out, nil
}

func (t *memTx) AffiliatedClubIDs(userID string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, m := range t.d.memberships {
		if m.ExternalUserID == userID {
			out[m.ClubID] = struct{}{}
		}
	}
	for _, c := range t.d.clubs {
		if c.ManagerID == userID {
			out[c.ID] = struct{}{}
		}
	}
	return out, nil
}

func (t *memTx) ApprovedClubs(userID string) ([]models.Club, error) {
	var out []models.Club
	for _, m := range t.d.memberships {
		if m.ExternalUserID != userID || m.Status != models.MembershipApproved {
			continue
		}
		if c, err := t.GetClub(m.ClubID); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (t *memTx) CreateClub(c *models.Club) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Category == "" {
		c.Category = "General"
	}
	c.CreatedAt, c.UpdatedAt = t.now(), t.now()
	t.d.clubs = append(t.d.clubs, *c)
	return nil
}

func (t *memTx) GetClub(id string) (*models.Club, error) {
	for _, c := range t.d.clubs {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) IncrementClubPopularity(id string, by int64) error {
	for i := range t.d.clubs {
		if t.d.clubs[i].ID == id {
			t.d.clubs[i].PopularityScore = max(t.d.clubs[i].PopularityScore+by, 0)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) GetMembership(userID, clubID string) (*models.ClubMembership, error) {
	for _, m := range t.d.memberships {
		if m.ExternalUserID == userID && m.ClubID == clubID {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateMembership(m *models.ClubMembership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.MembershipPending
	}
	m.CreatedAt, m.UpdatedAt = t.now(), t.now()
	t.d.memberships = append(t.d.memberships, *m)
	return nil
}

func (t *memTx) DeleteMembership(id string) error {
	for i, m := range t.d.memberships {
		if m.ID == id {
			t.d.memberships = append(t.d.memberships[:i], t.d.memberships[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) TopClubs(limit int) ([]models.Club, error) {
	clubs := append([]models.Club(nil), t.d.clubs...)
	sort.SliceStable(clubs, func(i, j int) bool { return clubs[i].PopularityScore > clubs[j].PopularityScore })
	if limit >= 0 && len(clubs) > limit {
		clubs = clubs[:limit]
	}
	return clubs, nil
}

func (t *memTx) Stats() (Stats, error) {
	return Stats{
		Users:  int64(len(t.d.progress)),
		Clubs:  int64(len(t.d.clubs)),
		Events: int64(len(t.d.events)),
	}, nil
}

func (t *memTx) CreateClubSkill(cs *models.ClubSkill) error {
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}
	t.d.clubSkills = append(t.d.clubSkills, *cs)
	return nil
}

func (t *memTx) CreateEvent(e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt, e.UpdatedAt = t.now(), t.now()
	t.d.events = append(t.d.events, *e)
	return nil
}

func (t *memTx) GetEvent(id string) (*models.Event, error) {
	for _, e := range t.d.events {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) GetRegistration(userID, eventID string) (*models.EventRegistration, error) {
	for _, r := range t.d.registrations {
		if r.ExternalUserID == userID && r.EventID == eventID {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateRegistration(r *models.EventRegistration) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RegisteredAt.IsZero() {
		r.RegisteredAt = t.now()
	}
	t.d.registrations = append(t.d.registrations, *r)
	return nil
}

func (t *memTx) RegistrationsSince(userID string, since time.Time) ([]models.EventRegistration, error) {
	var out []models.EventRegistration
	for _, r := range t.d.registrations {
		if r.ExternalUserID == userID && !r.RegisteredAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (t *memTx) CreateFeedback(f *models.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt, f.UpdatedAt = t.now(), t.now()
	t.d.feedback = append(t.d.feedback, *f)
	return nil
}

func (t *memTx) CreateSkill(s *models.Skill) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	t.d.skills = append(t.d.skills, *s)
	return nil
}

func (t *memTx) SkillsByName(names []string) ([]models.Skill, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var out []models.Skill
	for _, s := range t.d.skills {
		if _, ok := want[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *memTx) GetUserSkill(userID, skillID string) (*models.UserSkill, error) {
	for _, us := range t.d.userSkills {
		if us.ExternalUserID == userID && us.SkillID == skillID {
			cp := us
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateUserSkill(us *models.UserSkill) error {
	if us.ID == "" {
		us.ID = uuid.NewString()
	}
	t.d.userSkills = append(t.d.userSkills, *us)
	return nil
}

func (t *memTx) CreateCareer(c *models.Career) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	t.d.careers = append(t.d.careers, *c)
	return nil
}

func (t *memTx) DeleteClub(id string) error {
	if _, err := t.GetClub(id); err != nil {
		return err
	}
	events := map[string]struct{}{}
	for _, e := range t.d.events {
		if e.ClubID == id {
			events[e.ID] = struct{}{}
		}
	}
	t.d.registrations = filter(t.d.registrations, func(r models.EventRegistration) bool {
		_, gone := events[r.EventID]
		return !gone
	})
	t.d.events = filter(t.d.events, func(e models.Event) bool { return e.ClubID != id })
	t.d.feedback = filter(t.d.feedback, func(f models.Feedback) bool { return f.ClubID != id })
	t.d.messages = filter(t.d.messages, func(m models.Message) bool { return m.ClubID != id })
	t.d.clubSkills = filter(t.d.clubSkills, func(cs models.ClubSkill) bool { return cs.ClubID != id })
	t.d.memberships = filter(t.d.memberships, func(m models.ClubMembership) bool { return m.ClubID != id })
	t.d.clubs = filter(t.d.clubs, func(c models.Club) bool { return c.ID != id })
	return nil
}

func (t *memTx) ManagedClubStats(userID string) ([]ClubStats, error) {
	var out []ClubStats
	for _, c := range t.d.clubs {
		if c.ManagerID != userID {
			continue
		}
		st := ClubStats{Club: c}
		for _, m := range t.d.memberships {
			if m.ClubID == c.ID && m.Status == models.MembershipApproved {
				st.Members++
			}
		}
		for _, e := range t.d.events {
			if e.ClubID == c.ID {
				st.Events++
			}
		}
		for _, f := range t.d.feedback {
			if f.ClubID == c.ID {
				st.Feedback++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (t *memTx) DeleteEvent(id string) error {
	if _, err := t.GetEvent(id); err != nil {
		return err
	}
	t.d.registrations = filter(t.d.registrations, func(r models.EventRegistration) bool { return r.EventID != id })
	t.d.events = filter(t.d.events, func(e models.Event) bool { return e.ID != id })
	return nil
}

func (t *memTx) RegisteredEvents(userID string) ([]models.Event, error) {
	regs, _ := t.RegistrationsSince(userID, time.Time{})
	var out []models.Event
	for _, r := range regs {
		if e, err := t.GetEvent(r.EventID); err == nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (t *memTx) UpcomingEvents(after time.Time, limit int) ([]models.Event, error) {
	var out []models.Event
	for _, e := range t.d.events {
		if e.EventDate.After(after) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// filter keeps the rows for which keep is true, in a fresh slice so
// snapshots taken before the call stay intact.
func filter[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (t *memTx) CreateMessage(m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt, m.UpdatedAt = t.now(), t.now()
	t.d.messages = append(t.d.messages, *m)
	return nil
}

func (t *memTx) GetMessage(id string) (*models.Message, error) {
	for _, m := range t.d.messages {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) SetMessagePinned(id string, pinned bool) error {
	for i := range t.d.messages {
		if t.d.messages[i].ID == id {
			t.d.messages[i].IsPinned = pinned
			t.d.messages[i].UpdatedAt = t.now()
			return nil
		}
	}
	return ErrNotFound
}

// messages are appended in posting order, which stands in for the timestamp
func (t *memTx) ClubMessages(clubID string) ([]models.Message, error) {
	return filter(t.d.messages, func(m models.Message) bool { return m.ClubID == clubID }), nil
}

func (t *memTx) PinnedMessages(clubID string) ([]models.Message, error) {
	pinned := filter(t.d.messages, func(m models.Message) bool { return m.ClubID == clubID && m.IsPinned })
	for i, j := 0, len(pinned)-1; i < j; i, j = i+1, j-1 {
		pinned[i], pinned[j] = pinned[j], pinned[i]
	}
	return pinned, nil
}
