package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"campus-progression/models"
	"campus-progression/progression"
	"campus-progression/storage"

	"github.com/gosimple/slug"
)

// SampleManagerID owns the clubs created by sample seeding.
const SampleManagerID = "campus-admin"

var sampleSkills = []string{
	"DSA", "Web Development", "Machine Learning", "Public Speaking",
	"Leadership", "Event Management", "Creative Writing", "Music",
	"Photography", "Teamwork", "Problem Solving", "Networking",
	"Python", "Java", "JavaScript", "C++", "Data Analysis",
	"UI/UX Design", "Graphic Design", "Video Editing", "Content Writing",
	"Marketing", "Sales", "Finance", "Accounting", "Project Management",
	"Research", "Critical Thinking", "Communication", "Time Management",
	"Adaptability", "Creativity", "Collaboration",
}

var sampleCareers = []progression.Career{
	{Name: "Software Engineer", Description: "Builds and ships software products", RequiredSkills: []string{"DSA", "Web Development", "Problem Solving", "Teamwork"}},
	{Name: "Data Scientist", Description: "Turns data into models and decisions", RequiredSkills: []string{"Machine Learning", "Problem Solving", "DSA"}},
	{Name: "Product Manager", Description: "Leads teams from idea to launch", RequiredSkills: []string{"Leadership", "Public Speaking", "Event Management", "Teamwork"}},
	{Name: "Creative Director", Description: "Sets the creative vision of a studio", RequiredSkills: []string{"Creative Writing", "Music", "Photography", "Leadership"}},
}

var sampleClubs = []ClubInput{
	{Name: "Coding Club", Description: "Competitive programming, hackathons and developer meetups", Category: "Technology"},
	{Name: "Robotics Society", Description: "Build robots with arduino and electronics", Category: "Technology"},
	{Name: "Music Society", Description: "Band practice, singing and open mic nights", Category: "Arts"},
	{Name: "Debate Union", Description: "Weekly debate and public speaker training", Category: "Literary"},
	{Name: "Shutterbugs", Description: "Photography walks and camera workshops", Category: "Arts"},
	{Name: "Football Club", Description: "Inter-college football and fitness sessions", Category: "Sports"},
}

// clubSkillRule maps words in a club's text to the skills membership builds.
type clubSkillRule struct {
	keywords []string
	skills   []models.ClubSkill // SkillID holds the skill name until resolved
}

// every club builds a little teamwork
var baseClubSkill = models.ClubSkill{SkillID: "Teamwork", Points: 5}

var clubSkillRules = []clubSkillRule{
	{[]string{"coding", "tech", "developer"}, []models.ClubSkill{{SkillID: "DSA", Points: 20}, {SkillID: "Web Development", Points: 15}}},
	{[]string{"music", "art", "dance"}, []models.ClubSkill{{SkillID: "Music", Points: 20}, {SkillID: "Creative Writing", Points: 10}}},
	{[]string{"debate", "speaker"}, []models.ClubSkill{{SkillID: "Public Speaking", Points: 25}}},
	{[]string{"manager", "leader"}, []models.ClubSkill{{SkillID: "Leadership", Points: 20}}},
}

// CatalogService keeps the reference data (badge types, skills, careers) in the store.
type CatalogService struct {
	Store storage.Store
	Rules *progression.Rules
}

func NewCatalogService(store storage.Store, rules *progression.Rules) *CatalogService {
	return &CatalogService{Store: store, Rules: rules}
}

// SeedBadgeTypes mirrors the badge catalog into the store, keyed by slug.
func (s *CatalogService) SeedBadgeTypes(ctx context.Context) error {
	all := s.Rules.Badges.All()
	types := make([]models.BadgeType, 0, len(all))
	for _, b := range all {
		types = append(types, models.BadgeType{
			Code:        slug.Make(string(b.ID)),
			Name:        string(b.ID),
			Description: b.Description,
			Icon:        b.Icon,
			Rarity:      b.Rarity.String(),
			XP:          b.XP,
		})
	}
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		return tx.UpsertBadgeTypes(types)
	})
	if err != nil {
		return fmt.Errorf("failed to seed badge types: %w", err)
	}
	log.Printf("🎖️ Seeded %d badge types", len(types))
	return nil
}

// SeedSamples adds the sample skills, careers and clubs that are missing.
// Safe to run on every start.
func (s *CatalogService) SeedSamples(ctx context.Context) error {
	return s.Store.Transaction(ctx, func(tx storage.Tx) error {
		have, err := tx.SkillsByName(sampleSkills)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(have))
		for _, sk := range have {
			known[sk.Name] = struct{}{}
		}
		for _, name := range sampleSkills {
			if _, ok := known[name]; ok {
				continue
			}
			if err := tx.CreateSkill(&models.Skill{Name: name}); err != nil {
				return fmt.Errorf("failed to seed skill %s: %w", name, err)
			}
		}

		careers, err := tx.Careers()
		if err != nil {
			return err
		}
		haveCareer := make(map[string]struct{}, len(careers))
		for _, c := range careers {
			haveCareer[c.Name] = struct{}{}
		}
		for i, c := range sampleCareers {
			if _, ok := haveCareer[c.Name]; ok {
				continue
			}
			row := models.Career{Name: c.Name, Description: c.Description, RequiredSkills: c.RequiredSkills, Position: i}
			if err := tx.CreateCareer(&row); err != nil {
				return fmt.Errorf("failed to seed career %s: %w", c.Name, err)
			}
		}

		clubs, err := tx.ClubProfiles()
		if err != nil {
			return err
		}
		haveClub := make(map[string]struct{}, len(clubs))
		for _, c := range clubs {
			haveClub[c.Name] = struct{}{}
		}
		for _, in := range sampleClubs {
			if _, ok := haveClub[in.Name]; ok {
				continue
			}
			club := models.Club{Name: in.Name, Description: in.Description, Category: in.Category, ManagerID: SampleManagerID}
			if err := tx.CreateClub(&club); err != nil {
				return fmt.Errorf("failed to seed club %s: %w", in.Name, err)
			}
			if err := s.AssignClubSkills(tx, &club); err != nil {
				return err
			}
		}
		log.Printf("🌱 Sample catalog ready: %d skills, %d careers, %d clubs", len(sampleSkills), len(sampleCareers), len(sampleClubs))
		return nil
	})
}

// AssignClubSkills infers from the club's text which skills its members build.
// Skills missing from the catalog are skipped.
func (s *CatalogService) AssignClubSkills(tx storage.Tx, club *models.Club) error {
	text := strings.ToLower(club.Name + " " + club.Description + " " + club.Category)
	wanted := []models.ClubSkill{baseClubSkill}
	for _, rule := range clubSkillRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				wanted = append(wanted, rule.skills...)
				break
			}
		}
	}

	names := make([]string, 0, len(wanted))
	for _, w := range wanted {
		names = append(names, w.SkillID)
	}
	skills, err := tx.SkillsByName(names)
	if err != nil {
		return err
	}
	ids := make(map[string]string, len(skills))
	for _, sk := range skills {
		ids[sk.Name] = sk.ID
	}

	for _, w := range wanted {
		id, ok := ids[w.SkillID]
		if !ok {
			continue
		}
		cs := models.ClubSkill{ClubID: club.ID, SkillID: id, Points: w.Points}
		if err := tx.CreateClubSkill(&cs); err != nil {
			return fmt.Errorf("failed to map skill %s to club %s: %w", w.SkillID, club.Name, err)
		}
	}
	return nil
}
