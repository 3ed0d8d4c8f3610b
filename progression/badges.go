package progression

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Rarity orders badges common < uncommon < rare < epic < legendary.
type Rarity int

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var rarityNames = map[Rarity]string{
	RarityCommon:    "common",
	RarityUncommon:  "uncommon",
	RarityRare:      "rare",
	RarityEpic:      "epic",
	RarityLegendary: "legendary",
}

func (r Rarity) String() string {
	if name, ok := rarityNames[r]; ok {
		return name
	}
	return "unknown"
}

func ParseRarity(s string) (Rarity, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for r, name := range rarityNames {
		if name == needle {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid rarity %q", s)
}

func (r Rarity) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rarity) UnmarshalText(text []byte) error {
	parsed, err := ParseRarity(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// BadgeID is the display-name key of a badge, e.g. "First Club Joined".
type BadgeID string

const (
	BadgeFirstClubJoined BadgeID = "First Club Joined"
	BadgeClubLeader      BadgeID = "Club Leader"
	BadgeEventSpeaker    BadgeID = "Event Speaker"
	BadgeHackathonWinner BadgeID = "Hackathon Winner"
	BadgeStreak7         BadgeID = "Streak 7"
	BadgeTopContributor  BadgeID = "Top Contributor"
	BadgeSocialButterfly BadgeID = "Social Butterfly"
	BadgeNewbie          BadgeID = "Newbie"
	BadgeFeedbackGuru    BadgeID = "Feedback Guru"
	BadgeExplorer        BadgeID = "Explorer"
)

// Badge is a catalog entry.
type Badge struct {
	ID          BadgeID `json:"id" yaml:"id"`
	Icon        string  `json:"icon" yaml:"icon"`
	Description string  `json:"description" yaml:"description"`
	Rarity      Rarity  `json:"rarity" yaml:"rarity"`
	XP          int64   `json:"xp" yaml:"xp"`
}

var DefaultBadges = []Badge{
	{ID: BadgeFirstClubJoined, Icon: "🏅", Description: "Joined your first club", Rarity: RarityCommon, XP: 20},
	{ID: BadgeClubLeader, Icon: "👑", Description: "Created a club", Rarity: RarityRare, XP: 50},
	{ID: BadgeEventSpeaker, Icon: "🎤", Description: "Spoke at an event", Rarity: RarityRare, XP: 40},
	{ID: BadgeHackathonWinner, Icon: "🧠", Description: "Won a competition", Rarity: RarityLegendary, XP: 100},
	{ID: BadgeStreak7, Icon: "🔥", Description: "7-day activity streak", Rarity: RarityEpic, XP: 60},
	{ID: BadgeTopContributor, Icon: "🌟", Description: "Reached top 3 on leaderboard", Rarity: RarityLegendary, XP: 80},
	{ID: BadgeSocialButterfly, Icon: "🦋", Description: "Joined 5+ events", Rarity: RarityUncommon, XP: 30},
	{ID: BadgeNewbie, Icon: "🌱", Description: "Attended your first event", Rarity: RarityCommon, XP: 10},
	{ID: BadgeFeedbackGuru, Icon: "📝", Description: "Submitted 5+ feedbacks", Rarity: RarityUncommon, XP: 25},
	{ID: BadgeExplorer, Icon: "🧭", Description: "Visited 10+ clubs", Rarity: RarityUncommon, XP: 20},
}

// BadgeCatalog is an immutable registry of badge definitions, kept in declaration order.
type BadgeCatalog struct {
	order []BadgeID
	byID  map[BadgeID]Badge
}

func NewBadgeCatalog(badges []Badge) (*BadgeCatalog, error) {
	c := &BadgeCatalog{byID: make(map[BadgeID]Badge, len(badges))}
	for _, b := range badges {
		if strings.TrimSpace(string(b.ID)) == "" {
			return nil, errors.New("badge id must not be empty")
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate badge %q", b.ID)
		}
		if _, ok := rarityNames[b.Rarity]; !ok {
			return nil, fmt.Errorf("badge %q: invalid rarity %d", b.ID, b.Rarity)
		}
		if b.XP < 0 {
			return nil, fmt.Errorf("badge %q: negative xp %d", b.ID, b.XP)
		}
		c.order = append(c.order, b.ID)
		c.byID[b.ID] = b
	}
	return c, nil
}

func MustBadgeCatalog(badges []Badge) *BadgeCatalog {
	c, err := NewBadgeCatalog(badges)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup is the optional lookup contract: ok is false for unknown ids.
func (c *BadgeCatalog) Lookup(id BadgeID) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// All returns the catalog in declaration order.
func (c *BadgeCatalog) All() []Badge {
	out := make([]Badge, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// TopBadges picks up to n held badges for profile cards: Club Leader first,
// then by rarity and XP. Badges missing from the catalog sort last.
func (c *BadgeCatalog) TopBadges(held BadgeSet, n int) []BadgeID {
	ids := held.Slice()
	type key struct {
		leader bool
		rarity Rarity
		xp     int64
	}
	keyOf := func(id BadgeID) key {
		if id == BadgeClubLeader {
			return key{leader: true}
		}
		b, ok := c.byID[id]
		if !ok {
			return key{}
		}
		return key{rarity: b.Rarity, xp: b.XP}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := keyOf(ids[i]), keyOf(ids[j])
		if a.leader != b.leader {
			return a.leader
		}
		if a.rarity != b.rarity {
			return a.rarity > b.rarity
		}
		return a.xp > b.xp
	})
	if n >= 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// BadgeSet is an insertion-ordered set of badge ids.
type BadgeSet struct {
	ids []BadgeID
}

func NewBadgeSet(ids ...BadgeID) BadgeSet {
	var s BadgeSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s BadgeSet) Has(id BadgeID) bool {
	for _, have := range s.ids {
		if have == id {
			return true
		}
	}
	return false
}

// Add inserts id and reports whether it was new.
func (s *BadgeSet) Add(id BadgeID) bool {
	if s.Has(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s BadgeSet) Len() int { return len(s.ids) }

// Slice returns a copy of the ids in insertion order.
func (s BadgeSet) Slice() []BadgeID {
	return append([]BadgeID(nil), s.ids...)
}

// Clone returns an independent copy.
func (s BadgeSet) Clone() BadgeSet {
	return BadgeSet{ids: s.Slice()}
}
