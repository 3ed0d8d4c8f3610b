package progression

import "sort"

const (
	// CareerSkillCap is the most one skill can contribute to a career score.
	CareerSkillCap = 50
	// MissingSkillThreshold marks a required skill as missing below this total.
	MissingSkillThreshold = 10
)

// Career is a named path with equally weighted required skills.
type Career struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RequiredSkills []string `json:"required_skills"`
}

type CareerMatch struct {
	Career  string   `json:"career"`
	Match   int      `json:"match"`
	Missing []string `json:"missing"`
}

// MatchCareers scores every career with at least one required skill and
// returns them by match descending. Equal scores keep catalog order.
func MatchCareers(totals SkillTotals, careers []Career) []CareerMatch {
	out := make([]CareerMatch, 0, len(careers))
	for _, c := range careers {
		if len(c.RequiredSkills) == 0 {
			continue
		}
		possible := int64(CareerSkillCap * len(c.RequiredSkills))
		var matched int64
		missing := []string{}
		for _, skill := range c.RequiredSkills {
			have := totals[skill]
			matched += min(have, CareerSkillCap)
			if have < MissingSkillThreshold {
				missing = append(missing, skill)
			}
		}
		pct := 0
		if possible > 0 {
			pct = int(100 * matched / possible)
		}
		out = append(out, CareerMatch{Career: c.Name, Match: pct, Missing: missing})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Match > out[j].Match })
	return out
}
