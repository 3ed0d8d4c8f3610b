package progression

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DirectMatchScore  = 20
	KeywordMatchScore = 15
	MatchFloorBoost   = 40
	MatchCeiling      = 98
)

// InterestKeywords maps a title-cased interest tag to keywords searched for in club text.
type InterestKeywords map[string][]string

var DefaultInterestKeywords = InterestKeywords{
	"Coding":          {"tech", "code", "develop", "hack", "programming", "software"},
	"Design":          {"art", "design", "creative", "paint", "ui", "ux", "graphic"},
	"Public Speaking": {"debate", "speak", "toastmaster", "orator", "speech"},
	"Leadership":      {"lead", "manage", "council", "entrepreneur", "business"},
	"Music":           {"music", "band", "sing", "instrument", "jam"},
	"Photography":     {"photo", "camera", "media", "film", "lens"},
	"Gaming":          {"game", "esport", "play station", "pc"},
	"Social Service":  {"social", "service", "ngo", "help", "volunteer", "nss"},
}

func (k InterestKeywords) clone() InterestKeywords {
	out := make(InterestKeywords, len(k))
	for tag, kws := range k {
		out[tag] = append([]string(nil), kws...)
	}
	return out
}

// ClubProfile is the part of a club the recommender matches against.
type ClubProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (c ClubProfile) text() string {
	return strings.ToLower(c.Name + " " + c.Description + " " + c.Category)
}

type Recommendation struct {
	Club  ClubProfile `json:"club"`
	Score int         `json:"score"`
	Match int         `json:"match"` // displayed percentage, 40..98
}

type Recommender struct {
	keywords InterestKeywords
}

func NewRecommender(rules *Rules) *Recommender {
	return &Recommender{keywords: rules.Interests}
}

// Score computes the raw interest score of one club for tags.
func (r *Recommender) Score(tags []string, club ClubProfile) int {
	// Casers are stateful; one per call keeps Score safe for concurrent use.
	title := cases.Title(language.Und)
	text := club.text()

	score := 0
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		// a blank tag is contained in every text and scores the direct match
		if strings.Contains(text, strings.ToLower(tag)) {
			score += DirectMatchScore
		}
		for _, kw := range r.keywords[title.String(tag)] {
			if strings.Contains(text, kw) {
				score += KeywordMatchScore
				break
			}
		}
	}
	return score
}

// Recommend ranks clubs not in exclude against tags. Clubs scoring zero are
// dropped. Equal matches keep the order of clubs.
func (r *Recommender) Recommend(tags []string, clubs []ClubProfile, exclude map[string]struct{}) []Recommendation {
	var out []Recommendation
	for _, club := range clubs {
		if _, skip := exclude[club.ID]; skip {
			continue
		}
		score := r.Score(tags, club)
		if score <= 0 {
			continue
		}
		out = append(out, Recommendation{
			Club:  club,
			Score: score,
			Match: min(score+MatchFloorBoost, MatchCeiling),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Match > out[j].Match })
	return out
}

// ParseInterests splits a comma-separated interest list, dropping blanks so
// they never reach Score.
func ParseInterests(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
