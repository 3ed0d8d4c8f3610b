package progression

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RewardTable holds the XP granted for each qualifying action.
// Event registration is not here: it pays the event's own configured reward.
type RewardTable struct {
	Register    int64 `yaml:"register"`
	CreateClub  int64 `yaml:"create_club"`
	CreateEvent int64 `yaml:"create_event"`
	JoinClub    int64 `yaml:"join_club"`
	Feedback    int64 `yaml:"feedback"`
	SkillAdded  int64 `yaml:"skill_added"`
}

var DefaultRewards = RewardTable{
	Register:    10,
	CreateClub:  50,
	CreateEvent: 20,
	JoinClub:    25,
	Feedback:    10,
	SkillAdded:  10,
}

func (r RewardTable) validate() error {
	for name, v := range map[string]int64{
		"register":     r.Register,
		"create_club":  r.CreateClub,
		"create_event": r.CreateEvent,
		"join_club":    r.JoinClub,
		"feedback":     r.Feedback,
		"skill_added":  r.SkillAdded,
	} {
		if v < 0 {
			return fmt.Errorf("%s is negative (%d)", name, v)
		}
	}
	return nil
}

// Rules bundles the immutable configuration shared by every engine component.
// Build it once at startup and pass it by pointer; nothing mutates it afterwards.
type Rules struct {
	Levels    *LevelTable
	Badges    *BadgeCatalog
	Interests InterestKeywords
	Rewards   RewardTable
}

func DefaultRules() *Rules {
	return &Rules{
		Levels:    MustLevelTable(DefaultLevelThresholds, DefaultLevelNames),
		Badges:    MustBadgeCatalog(DefaultBadges),
		Interests: DefaultInterestKeywords.clone(),
		Rewards:   DefaultRewards,
	}
}

// rulesFile is the on-disk shape. Omitted sections keep their defaults.
type rulesFile struct {
	Levels *struct {
		Thresholds []int64  `yaml:"thresholds"`
		Names      []string `yaml:"names"`
	} `yaml:"levels"`
	Badges    []Badge             `yaml:"badges"`
	Interests map[string][]string `yaml:"interests"`
	Rewards   RewardTable         `yaml:"rewards"`
}

// ParseRules builds Rules from YAML, starting from the defaults.
func ParseRules(data []byte) (*Rules, error) {
	// rewards decode over the defaults key by key
	f := rulesFile{Rewards: DefaultRewards}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := DefaultRules()
	if f.Levels != nil {
		levels, err := NewLevelTable(f.Levels.Thresholds, f.Levels.Names)
		if err != nil {
			return nil, fmt.Errorf("invalid levels: %w", err)
		}
		rules.Levels = levels
	}
	if len(f.Badges) > 0 {
		badges, err := NewBadgeCatalog(f.Badges)
		if err != nil {
			return nil, fmt.Errorf("invalid badges: %w", err)
		}
		rules.Badges = badges
	}
	if len(f.Interests) > 0 {
		rules.Interests = InterestKeywords(f.Interests).clone()
	}
	if err := f.Rewards.validate(); err != nil {
		return nil, fmt.Errorf("invalid rewards: %w", err)
	}
	rules.Rewards = f.Rewards
	return rules, nil
}

// LoadRules reads a YAML rules file. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}
