package progression

import (
	"errors"
	"fmt"
)

// OpenEndedLevelSpan is the synthetic XP width of every level past the last threshold.
const OpenEndedLevelSpan = 500

var (
	DefaultLevelThresholds = []int64{0, 50, 120, 220, 350, 520, 740, 1020, 1360, 1800, 2500}
	DefaultLevelNames      = []string{
		"Newcomer", "Explorer", "Enthusiast", "Contributor", "Activist",
		"Champion", "Mentor", "Visionary", "Elite", "Campus Legend", "Mythic",
	}
)

// LevelInfo is the derived view of a user's XP against the level table.
type LevelInfo struct {
	Level       int    `json:"level"` // 1-based
	Name        string `json:"name"`
	XPCurrent   int64  `json:"xp_current"`
	XPInLevel   int64  `json:"xp_in_level"`
	XPForNext   int64  `json:"xp_for_next"`
	NextLevelXP int64  `json:"next_level_xp"`
	Progress    int    `json:"progress"` // 0..100
}

// LevelTable maps cumulative XP to a level. It is immutable once built.
type LevelTable struct {
	thresholds []int64
	names      []string
}

func NewLevelTable(thresholds []int64, names []string) (*LevelTable, error) {
	if len(thresholds) == 0 {
		return nil, errors.New("level table needs at least one threshold")
	}
	if thresholds[0] != 0 {
		return nil, fmt.Errorf("first level threshold must be 0, got %d", thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, fmt.Errorf("level thresholds must be strictly increasing (index %d: %d <= %d)",
				i, thresholds[i], thresholds[i-1])
		}
	}
	if len(names) == 0 {
		return nil, errors.New("level table needs at least one name")
	}
	return &LevelTable{
		thresholds: append([]int64(nil), thresholds...),
		names:      append([]string(nil), names...),
	}, nil
}

func MustLevelTable(thresholds []int64, names []string) *LevelTable {
	t, err := NewLevelTable(thresholds, names)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of defined thresholds.
func (t *LevelTable) Len() int { return len(t.thresholds) }

// index returns the zero-based level index for xp.
func (t *LevelTable) index(xp int64) int {
	idx := 0
	for i, threshold := range t.thresholds {
		if xp < threshold {
			break
		}
		idx = i
	}
	return idx
}

// Level returns just the 1-based level number for xp.
func (t *LevelTable) Level(xp int64) int {
	return t.index(xp) + 1
}

// LevelOf computes the full level view used by progress bars.
func (t *LevelTable) LevelOf(xp int64) LevelInfo {
	idx := t.index(xp)
	current := t.thresholds[idx]

	next := current + OpenEndedLevelSpan
	if idx+1 < len(t.thresholds) {
		next = t.thresholds[idx+1]
	}

	inLevel := xp - current
	needed := next - current

	progress := 100
	if needed > 0 {
		progress = int(100 * inLevel / needed)
		if progress > 100 {
			progress = 100
		}
	}

	nameIdx := idx
	if nameIdx > len(t.names)-1 {
		nameIdx = len(t.names) - 1
	}

	return LevelInfo{
		Level:       idx + 1,
		Name:        t.names[nameIdx],
		XPCurrent:   xp,
		XPInLevel:   inLevel,
		XPForNext:   needed,
		NextLevelXP: next,
		Progress:    progress,
	}
}
