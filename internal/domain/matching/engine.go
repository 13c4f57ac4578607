package matching

import (
	"math"
	"regexp"
	"strings"

	"outreach-engine/internal/domain/opportunity"
)

const (
	skillWeight            = 0.40
	industryWeight         = 0.25
	experienceWeight       = 0.20
	priorityIndustryWeight = 0.10
	urgencyWeight          = 0.05

	tierPenalty = 0.25
)

var (
	seniorPattern = regexp.MustCompile(`\b(senior|lead|principal)\b`)
	entryPattern  = regexp.MustCompile(`\b(junior|entry|graduate)\b`)
	expertPattern = regexp.MustCompile(`\b(expert|architect|director)\b`)
)

type Options struct {
	PriorityIndustries []string
}

// Breakdown holds each component's contribution in score points.
type Breakdown struct {
	Skill            float64 `json:"skill"`
	Industry         float64 `json:"industry"`
	Experience       float64 `json:"experience"`
	PriorityIndustry float64 `json:"priority_industry"`
	Urgency          float64 `json:"urgency"`

	SkillRatio   float64                    `json:"skill_ratio"`
	RequiredTier opportunity.ExperienceTier `json:"required_tier"`
}

type Verdict struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type Result struct {
	OpportunityID string    `json:"opportunity_id"`
	ProfileID     string    `json:"profile_id"`
	Score         int       `json:"score"`
	Breakdown     Breakdown `json:"breakdown"`
	MatchedSkills []string  `json:"matched_skills"`
	MissingSkills []string  `json:"missing_skills"`
	Verdict       Verdict   `json:"verdict"`
}

// WithVerdict returns a copy of r carrying v.
func (r Result) WithVerdict(v Verdict) Result {
	out := r
	out.MatchedSkills = append([]string(nil), r.MatchedSkills...)
	out.MissingSkills = append([]string(nil), r.MissingSkills...)
	out.Verdict = v
	return out
}

func Score(o opportunity.Opportunity, p opportunity.Profile, opts Options) Result {
	matched, missing := matchSkills(o.Skills, p.Skills)

	skillRatio := 1.0
	if declared := len(matched) + len(missing); declared > 0 {
		skillRatio = float64(len(matched)) / float64(declared)
	}

	industryRatio := 0.0
	if containsFold(p.Industries, o.Industry) {
		industryRatio = 1
	}

	required := RequiredTier(o.Title + " " + o.Description)
	expRatio := experienceRatio(p.Experience, required)

	priorityRatio := 0.0
	if containsFold(opts.PriorityIndustries, o.Industry) {
		priorityRatio = 1
	}

	urgencyRatio := 0.0
	if o.Urgency.IsPressing() {
		urgencyRatio = 1
	}

	b := Breakdown{
		Skill:            skillWeight * skillRatio * 100,
		Industry:         industryWeight * industryRatio * 100,
		Experience:       experienceWeight * expRatio * 100,
		PriorityIndustry: priorityIndustryWeight * priorityRatio * 100,
		Urgency:          urgencyWeight * urgencyRatio * 100,
		SkillRatio:       skillRatio,
		RequiredTier:     required,
	}

	total := b.Skill + b.Industry + b.Experience + b.PriorityIndustry + b.Urgency

	return Result{
		OpportunityID: o.ID,
		ProfileID:     p.ID,
		Score:         clampInt(int(math.Round(total)), 0, 100),
		Breakdown:     b,
		MatchedSkills: matched,
		MissingSkills: missing,
	}
}

// RequiredTier infers the experience tier a posting asks for from its text.
func RequiredTier(text string) opportunity.ExperienceTier {
	t := strings.ToLower(text)
	switch {
	case seniorPattern.MatchString(t):
		return opportunity.TierSenior
	case entryPattern.MatchString(t):
		return opportunity.TierEntry
	case expertPattern.MatchString(t):
		return opportunity.TierExpert
	default:
		return opportunity.TierMid
	}
}

func matchSkills(required, have []string) ([]string, []string) {
	matched := make([]string, 0, len(required))
	missing := make([]string, 0)
	for _, req := range required {
		r := strings.ToLower(strings.TrimSpace(req))
		if r == "" {
			continue
		}
		if fuzzyContains(have, r) {
			matched = append(matched, req)
		} else {
			missing = append(missing, req)
		}
	}
	return matched, missing
}

func fuzzyContains(have []string, needle string) bool {
	for _, h := range have {
		s := strings.ToLower(strings.TrimSpace(h))
		if s == "" {
			continue
		}
		if strings.Contains(s, needle) || strings.Contains(needle, s) {
			return true
		}
	}
	return false
}

func experienceRatio(have, required opportunity.ExperienceTier) float64 {
	if have == 0 {
		have = opportunity.TierMid
	}
	dist := int(have) - int(required)
	if dist < 0 {
		dist = -dist
	}
	v := 1 - tierPenalty*float64(dist)
	if v < 0 {
		return 0
	}
	return v
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
