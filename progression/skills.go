package progression

import (
	"sort"
	"time"
)

// EventSkillShare is the fraction of a club skill's points earned by attending
// one of the club's past events.
const EventSkillShare = 0.5

// SkillSource is the provenance of a skill contribution.
type SkillSource string

const (
	SourceManual SkillSource = "manual"
	SourceClub   SkillSource = "club"
	SourceEvent  SkillSource = "event"
)

// SkillPoint is one contribution toward a named skill.
type SkillPoint struct {
	Skill  string      `json:"skill"`
	Amount int64       `json:"amount"`
	Source SkillSource `json:"source"`
}

// ClubSkill is a skill a club trains, with its configured point value.
type ClubSkill struct {
	Skill  string `json:"skill"`
	Points int64  `json:"points"`
}

type Membership struct {
	ClubID   string      `json:"club_id"`
	Approved bool        `json:"approved"`
	Skills   []ClubSkill `json:"skills"`
}

// Attendance is an event registration, carrying the skills of the event's club.
type Attendance struct {
	EventID    string      `json:"event_id"`
	EventDate  time.Time   `json:"event_date"`
	ClubSkills []ClubSkill `json:"club_skills"`
}

// SkillInputs is everything the aggregator needs for one user.
type SkillInputs struct {
	Manual      []SkillPoint
	Memberships []Membership
	Attendances []Attendance
}

// Contributions lists every individual skill contribution, in source order:
// manual entries, approved memberships, then past events.
func Contributions(in SkillInputs, now time.Time) []SkillPoint {
	var out []SkillPoint
	for _, m := range in.Manual {
		out = append(out, SkillPoint{Skill: m.Skill, Amount: m.Amount, Source: SourceManual})
	}
	for _, m := range in.Memberships {
		if !m.Approved {
			continue
		}
		for _, cs := range m.Skills {
			out = append(out, SkillPoint{Skill: cs.Skill, Amount: cs.Points, Source: SourceClub})
		}
	}
	for _, a := range in.Attendances {
		if !a.EventDate.Before(now) {
			continue
		}
		for _, cs := range a.ClubSkills {
			out = append(out, SkillPoint{Skill: cs.Skill, Amount: eventShare(cs.Points), Source: SourceEvent})
		}
	}
	return out
}

func eventShare(points int64) int64 {
	// integer halving is floor for the non-negative values clubs configure
	return int64(float64(points) * EventSkillShare)
}

// SkillTotals maps skill name to total points.
type SkillTotals map[string]int64

// Aggregate sums all contributions per skill. Totals are not capped.
func Aggregate(in SkillInputs, now time.Time) SkillTotals {
	totals := SkillTotals{}
	for _, p := range Contributions(in, now) {
		totals[p.Skill] += p.Amount
	}
	return totals
}

// SkillTotal is one entry of a sorted totals listing.
type SkillTotal struct {
	Skill  string `json:"skill"`
	Points int64  `json:"points"`
}

// Sorted lists totals by points descending, then name ascending.
func (t SkillTotals) Sorted() []SkillTotal {
	out := make([]SkillTotal, 0, len(t))
	for skill, pts := range t {
		out = append(out, SkillTotal{Skill: skill, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}
