package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campus-progression/models"
	"campus-progression/progression"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists everything in postgres through GORM.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates or updates every table the services use.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.Club{},
		&models.ClubMembership{},
		&models.Feedback{},
		&models.Message{},
		&models.Event{},
		&models.EventRegistration{},
		&models.Skill{},
		&models.ClubSkill{},
		&models.UserSkill{},
		&models.Career{},
	)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (t *gormTx) EnsureProgress(userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", userID).
		First(&prog).Error
	if err == nil {
		return &prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Insert-if-absent so two first requests for the same user can't both create it
	fresh := models.UserProgress{ID: uuid.NewString(), ExternalUserID: userID}
	if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("failed to create progress for %s: %w", userID, err)
	}
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", userID).
		First(&prog).Error; err != nil {
		return nil, err
	}
	return &prog, nil
}

func (t *gormTx) SaveProgress(p *models.UserProgress) error {
	return t.db.Save(p).Error
}

func (t *gormTx) Leaderboard(limit int) ([]models.UserProgress, error) {
	var users []models.UserProgress
	err := t.db.Order("xp DESC").Order("created_at ASC").Limit(limit).Find(&users).Error
	return users, err
}

func (t *gormTx) UserIDs() ([]string, error) {
	var ids []string
	err := t.db.Model(&models.UserProgress{}).Order("created_at ASC").Pluck("external_user_id", &ids).Error
	return ids, err
}

func (t *gormTx) SearchUsers(query string, limit int) ([]models.UserProgress, error) {
	var users []models.UserProgress
	db := t.db.Model(&models.UserProgress{}).Order("username ASC").Limit(limit)
	if query != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}
	err := db.Find(&users).Error
	return users, err
}

func (t *gormTx) CountUsers() (int64, error) {
	var n int64
	err := t.db.Model(&models.UserProgress{}).Count(&n).Error
	return n, err
}

func (t *gormTx) UserBadges(userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := t.db.Where("external_user_id = ?", userID).Order("awarded_at ASC").Find(&badges).Error
	return badges, err
}

func (t *gormTx) AwardBadge(userID, badge string, at time.Time) error {
	row := models.UserBadge{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		BadgeName:      badge,
		AwardedAt:      at,
	}
	return t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (t *gormTx) BadgeHolderCounts() (map[string]int64, error) {
	var rows []struct {
		BadgeName string
		Holders   int64
	}
	err := t.db.Model(&models.UserBadge{}).
		Select("badge_name, COUNT(*) AS holders").
		Group("badge_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.BadgeName] = r.Holders
	}
	return out, nil
}

func (t *gormTx) UpsertBadgeTypes(types []models.BadgeType) error {
	if len(types) == 0 {
		return nil
	}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "rarity", "xp", "updated_at"}),
	}).Create(&types).Error
}

func (t *gormTx) Counters(userID string) (progression.Counters, error) {
	var c progression.Counters
	if err := t.db.Model(&models.ClubMembership{}).
		Where("external_user_id = ? AND status = ?", userID, models.MembershipApproved).
		Count(&c.ApprovedClubs).Error; err != nil {
		return c, err
	}
	if err := t.db.Model(&models.EventRegistration{}).
		Where("external_user_id = ?", userID).
		Count(&c.Registrations).Error; err != nil {
		return c, err
	}
	if err := t.db.Model(&models.Feedback{}).
		Where("external_user_id = ?", userID).
		Count(&c.Feedback).Error; err != nil {
		return c, err
	}
	if err := t.db.Model(&models.Club{}).
		Where("manager_id = ?", userID).
		Count(&c.ManagedClubs).Error; err != nil {
		return c, err
	}
	return c, nil
}

// clubSkills loads the skills of the given clubs, grouped by club id.
func (t *gormTx) clubSkills(clubIDs []string) (map[string][]progression.ClubSkill, error) {
	out := map[string][]progression.ClubSkill{}
	if len(clubIDs) == 0 {
		return out, nil
	}
	var rows []models.ClubSkill
	if err := t.db.Preload("Skill").Where("club_id IN ?", clubIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, cs := range rows {
		out[cs.ClubID] = append(out[cs.ClubID], progression.ClubSkill{Skill: cs.Skill.Name, Points: cs.Points})
	}
	return out, nil
}

func (t *gormTx) SkillInputs(userID string) (progression.SkillInputs, error) {
	var in progression.SkillInputs

	var manual []models.UserSkill
	if err := t.db.Preload("Skill").Where("external_user_id = ?", userID).Find(&manual).Error; err != nil {
		return in, err
	}
	for _, us := range manual {
		in.Manual = append(in.Manual, progression.SkillPoint{Skill: us.Skill.Name, Amount: us.Amount, Source: progression.SourceManual})
	}

	var memberships []models.ClubMembership
	if err := t.db.Where("external_user_id = ?", userID).Find(&memberships).Error; err != nil {
		return in, err
	}

	var regs []models.EventRegistration
	if err := t.db.Where("external_user_id = ?", userID).Find(&regs).Error; err != nil {
		return in, err
	}
	eventIDs := make([]string, 0, len(regs))
	for _, r := range regs {
		eventIDs = append(eventIDs, r.EventID)
	}
	var events []models.Event
	if len(eventIDs) > 0 {
		if err := t.db.Where("id IN ?", eventIDs).Find(&events).Error; err != nil {
			return in, err
		}
	}

	clubIDs := make([]string, 0, len(memberships)+len(events))
	for _, m := range memberships {
		clubIDs = append(clubIDs, m.ClubID)
	}
	for _, e := range events {
		clubIDs = append(clubIDs, e.ClubID)
	}
	skills, err := t.clubSkills(clubIDs)
	if err != nil {
		return in, err
	}

	for _, m := range memberships {
		in.Memberships = append(in.Memberships, progression.Membership{
			ClubID:   m.ClubID,
			Approved: m.Status == models.MembershipApproved,
			Skills:   skills[m.ClubID],
		})
	}
	for _, e := range events {
		in.Attendances = append(in.Attendances, progression.Attendance{
			EventID:    e.ID,
			EventDate:  e.EventDate,
			ClubSkills: skills[e.ClubID],
		})
	}
	return in, nil
}

func (t *gormTx) Careers() ([]progression.Career, error) {
	var rows []models.Career
	if err := t.db.Order("position ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]progression.Career, 0, len(rows))
	for _, c := range rows {
		out = append(out, progression.Career{Name: c.Name, Description: c.Description, RequiredSkills: c.RequiredSkills})
	}
	return out, nil
}

func (t *gormTx) ClubProfiles() ([]progression.ClubProfile, error) {
	var clubs []models.Club
	if err := t.db.Order("created_at ASC").Find(&clubs).Error; err != nil {
		return nil, err
	}
	out := make([]progression.ClubProfile, 0, len(clubs))
	for _, c := range clubs {
		out = append(out, progression.ClubProfile{ID: c.ID, Name: c.Name, Description: c.Description, Category: c.Category})
	}
	return out, nil
}

func (t *gormTx) AffiliatedClubIDs(userID string) (map[string]struct{}, error) {
	var joined, managed []string
	if err := t.db.Model(&models.ClubMembership{}).
		Where("external_user_id = ?", userID).
		Pluck("club_id", &joined).Error; err != nil {
		return nil, err
	}
	if err := t.db.Model(&models.Club{}).
		Where("manager_id = ?", userID).
		Pluck("id", &managed).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(joined)+len(managed))
	for _, id := range append(joined, managed...) {
		out[id] = struct{}{}
	}
	return out, nil
}

func (t *gormTx) ApprovedClubs(userID string) ([]models.Club, error) {
	var clubs []models.Club
	err := t.db.
		Joins("JOIN club_memberships cm ON cm.club_id = clubs.id AND cm.deleted_at IS NULL").
		Where("cm.external_user_id = ? AND cm.status = ?", userID, models.MembershipApproved).
		Order("cm.created_at ASC").
		Find(&clubs).Error
	return clubs, err
}

func (t *gormTx) CreateClub(c *models.Club) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return t.db.Create(c).Error
}

func (t *gormTx) GetClub(id string) (*models.Club, error) {
	var c models.Club
	if err := t.db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *gormTx) IncrementClubPopularity(id string, by int64) error {
	return t.db.Model(&models.Club{}).
		Where("id = ?", id).
		UpdateColumn("popularity_score", gorm.Expr("GREATEST(popularity_score + ?, 0)", by)).Error
}

func (t *gormTx) TopClubs(limit int) ([]models.Club, error) {
	var clubs []models.Club
	err := t.db.Order("popularity_score DESC").Order("created_at ASC").Limit(limit).Find(&clubs).Error
	return clubs, err
}

func (t *gormTx) Stats() (Stats, error) {
	var st Stats
	if err := t.db.Model(&models.UserProgress{}).Count(&st.Users).Error; err != nil {
		return st, err
	}
	if err := t.db.Model(&models.Club{}).Count(&st.Clubs).Error; err != nil {
		return st, err
	}
	err := t.db.Model(&models.Event{}).Count(&st.Events).Error
	return st, err
}

func (t *gormTx) GetMembership(userID, clubID string) (*models.ClubMembership, error) {
	var m models.ClubMembership
	if err := t.db.Where("external_user_id = ? AND club_id = ?", userID, clubID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (t *gormTx) CreateMembership(m *models.ClubMembership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return t.db.Create(m).Error
}

// DeleteMembership removes the row for good so the user can join again later.
func (t *gormTx) DeleteMembership(id string) error {
	return t.db.Unscoped().Where("id = ?", id).Delete(&models.ClubMembership{}).Error
}

func (t *gormTx) CreateClubSkill(cs *models.ClubSkill) error {
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}
	return t.db.Omit("Skill").Create(cs).Error
}

func (t *gormTx) CreateEvent(e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return t.db.Create(e).Error
}

func (t *gormTx) GetEvent(id string) (*models.Event, error) {
	var e models.Event
	if err := t.db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (t *gormTx) GetRegistration(userID, eventID string) (*models.EventRegistration, error) {
	var r models.EventRegistration
	if err := t.db.Where("external_user_id = ? AND event_id = ?", userID, eventID).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (t *gormTx) CreateRegistration(r *models.EventRegistration) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return t.db.Create(r).Error
}

func (t *gormTx) RegistrationsSince(userID string, since time.Time) ([]models.EventRegistration, error) {
	var regs []models.EventRegistration
	err := t.db.Where("external_user_id = ? AND registered_at >= ?", userID, since).
		Order("registered_at ASC").
		Find(&regs).Error
	return regs, err
}

func (t *gormTx) CreateFeedback(f *models.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return t.db.Create(f).Error
}

func (t *gormTx) CreateSkill(s *models.Skill) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return t.db.Create(s).Error
}

func (t *gormTx) SkillsByName(names []string) ([]models.Skill, error) {
	var skills []models.Skill
	if len(names) == 0 {
		return skills, nil
	}
	err := t.db.Where("name IN ?", names).Find(&skills).Error
	return skills, err
}

func (t *gormTx) GetUserSkill(userID, skillID string) (*models.UserSkill, error) {
	var us models.UserSkill
	if err := t.db.Where("external_user_id = ? AND skill_id = ?", userID, skillID).First(&us).Error; err != nil {
		return nil, notFound(err)
	}
	return &us, nil
}

func (t *gormTx) CreateUserSkill(us *models.UserSkill) error {
	if us.ID == "" {
		us.ID = uuid.NewString()
	}
	return t.db.Omit("Skill").Create(us).Error
}

func (t *gormTx) CreateCareer(c *models.Career) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return t.db.Create(c).Error
}

func (t *gormTx) DeleteClub(id string) error {
	if _, err := t.GetClub(id); err != nil {
		return err
	}
	eventIDs := t.db.Unscoped().Model(&models.Event{}).Select("id").Where("club_id = ?", id)
	if err := t.db.Where("event_id IN (?)", eventIDs).Delete(&models.EventRegistration{}).Error; err != nil {
		return fmt.Errorf("failed to delete registrations of club %s: %w", id, err)
	}
	steps := []struct {
		name  string
		model any
		where string
	}{
		{"messages", &models.Message{}, "club_id = ?"},
		{"events", &models.Event{}, "club_id = ?"},
		{"feedback", &models.Feedback{}, "club_id = ?"},
		{"club skills", &models.ClubSkill{}, "club_id = ?"},
		{"memberships", &models.ClubMembership{}, "club_id = ?"},
		{"club", &models.Club{}, "id = ?"},
	}
	for _, step := range steps {
		if err := t.db.Unscoped().Where(step.where, id).Delete(step.model).Error; err != nil {
			return fmt.Errorf("failed to delete %s of club %s: %w", step.name, id, err)
		}
	}
	return nil
}

func (t *gormTx) ManagedClubStats(userID string) ([]ClubStats, error) {
	var clubs []models.Club
	if err := t.db.Where("manager_id = ?", userID).Order("created_at ASC").Find(&clubs).Error; err != nil {
		return nil, err
	}
	out := make([]ClubStats, 0, len(clubs))
	for _, c := range clubs {
		st := ClubStats{Club: c}
		if err := t.db.Model(&models.ClubMembership{}).
			Where("club_id = ? AND status = ?", c.ID, models.MembershipApproved).
			Count(&st.Members).Error; err != nil {
			return nil, err
		}
		if err := t.db.Model(&models.Event{}).Where("club_id = ?", c.ID).Count(&st.Events).Error; err != nil {
			return nil, err
		}
		if err := t.db.Model(&models.Feedback{}).Where("club_id = ?", c.ID).Count(&st.Feedback).Error; err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (t *gormTx) DeleteEvent(id string) error {
	if _, err := t.GetEvent(id); err != nil {
		return err
	}
	if err := t.db.Where("event_id = ?", id).Delete(&models.EventRegistration{}).Error; err != nil {
		return fmt.Errorf("failed to delete registrations of event %s: %w", id, err)
	}
	return t.db.Unscoped().Where("id = ?", id).Delete(&models.Event{}).Error
}

func (t *gormTx) RegisteredEvents(userID string) ([]models.Event, error) {
	var events []models.Event
	err := t.db.
		Joins("JOIN event_registrations er ON er.event_id = events.id").
		Where("er.external_user_id = ?", userID).
		Order("er.registered_at ASC").
		Find(&events).Error
	return events, err
}

func (t *gormTx) UpcomingEvents(after time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := t.db.Where("event_date > ?", after).Order("event_date ASC").Limit(limit).Find(&events).Error
	return events, err
}

func (t *gormTx) CreateMessage(m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return t.db.Create(m).Error
}

func (t *gormTx) GetMessage(id string) (*models.Message, error) {
	var m models.Message
	if err := t.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (t *gormTx) SetMessagePinned(id string, pinned bool) error {
	res := t.db.Model(&models.Message{}).Where("id = ?", id).Update("is_pinned", pinned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) ClubMessages(clubID string) ([]models.Message, error) {
	var msgs []models.Message
	err := t.db.Where("club_id = ?", clubID).Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}

func (t *gormTx) PinnedMessages(clubID string) ([]models.Message, error) {
	var msgs []models.Message
	err := t.db.Where("club_id = ? AND is_pinned = ?", clubID, true).Order("created_at DESC").Find(&msgs).Error
	return msgs, err
}
