package matching

import (
	"math"
	"reflect"
	"testing"

	"outreach-engine/internal/domain/opportunity"
)

func neutralOpportunity() opportunity.Opportunity {
	return opportunity.Opportunity{
		ID:       "opp-1",
		Title:    "Platform Engineer",
		Industry: "logistics",
		Skills:   []string{"Go", "Kubernetes"},
		Urgency:  opportunity.UrgencyLow,
	}
}

func midProfile() opportunity.Profile {
	return opportunity.Profile{
		ID:         "prof-1",
		Skills:     []string{"Go", "Docker"},
		Industries: []string{"fintech"},
		Experience: opportunity.TierMid,
	}
}

func TestScore_SkillRatioHalf(t *testing.T) {
	res := Score(neutralOpportunity(), midProfile(), Options{})

	if res.Breakdown.SkillRatio != 0.5 {
		t.Fatalf("expected skill ratio 0.5, got %v", res.Breakdown.SkillRatio)
	}
	if math.Abs(res.Breakdown.Skill-20) > 1e-9 {
		t.Fatalf("expected skill contribution 20, got %v", res.Breakdown.Skill)
	}
	if res.Breakdown.Industry != 0 || res.Breakdown.Urgency != 0 || res.Breakdown.PriorityIndustry != 0 {
		t.Fatalf("expected neutral industry/urgency, got %+v", res.Breakdown)
	}
	// same tier → full experience credit
	if res.Score != 40 {
		t.Fatalf("expected score 40, got %d", res.Score)
	}
	if !reflect.DeepEqual(res.MatchedSkills, []string{"Go"}) || !reflect.DeepEqual(res.MissingSkills, []string{"Kubernetes"}) {
		t.Fatalf("unexpected matched=%v missing=%v", res.MatchedSkills, res.MissingSkills)
	}
}

func TestScore_Deterministic(t *testing.T) {
	o := neutralOpportunity()
	p := midProfile()
	first := Score(o, p, Options{PriorityIndustries: []string{"logistics"}})
	for i := 0; i < 20; i++ {
		if got := Score(o, p, Options{PriorityIndustries: []string{"logistics"}}); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestScore_NoDeclaredSkillsGivesFullSkillCredit(t *testing.T) {
	o := neutralOpportunity()
	o.Skills = nil
	res := Score(o, midProfile(), Options{})
	if res.Breakdown.SkillRatio != 1 {
		t.Fatalf("expected full skill credit, got %v", res.Breakdown.SkillRatio)
	}
}

func TestScore_FuzzyMatchBothDirections(t *testing.T) {
	o := neutralOpportunity()
	o.Skills = []string{"postgres", "React Native"}
	p := midProfile()
	p.Skills = []string{"PostgreSQL", "react"}
	res := Score(o, p, Options{})
	if res.Breakdown.SkillRatio != 1 {
		t.Fatalf("expected both skills to fuzzy-match, got %+v", res)
	}
}

func TestScore_AllBonusesClampedTo100(t *testing.T) {
	o := neutralOpportunity()
	o.Industry = "Fintech"
	o.Urgency = opportunity.UrgencyUrgent
	o.Skills = []string{"go"}
	res := Score(o, midProfile(), Options{PriorityIndustries: []string{"fintech"}})
	if res.Score != 100 {
		t.Fatalf("expected 100, got %d (%+v)", res.Score, res.Breakdown)
	}
}

func TestRequiredTier(t *testing.T) {
	cases := map[string]opportunity.ExperienceTier{
		"Senior Go Engineer":             opportunity.TierSenior,
		"Tech Lead":                      opportunity.TierSenior,
		"Graduate developer programme":   opportunity.TierEntry,
		"Solutions Architect":            opportunity.TierExpert,
		"Backend developer":              opportunity.TierMid,
		"Misleading title with leaders":  opportunity.TierMid,
		"Principal engineer, architect":  opportunity.TierSenior,
	}
	for text, want := range cases {
		if got := RequiredTier(text); got != want {
			t.Errorf("RequiredTier(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestScore_ExperienceDistance(t *testing.T) {
	o := neutralOpportunity()
	o.Title = "Junior developer"
	p := midProfile()
	p.Experience = opportunity.TierExpert
	res := Score(o, p, Options{})
	// entry vs expert: distance 3 → 1 - 0.75 = 0.25 → 5 points
	if math.Abs(res.Breakdown.Experience-5) > 1e-9 {
		t.Fatalf("expected experience contribution 5, got %v", res.Breakdown.Experience)
	}
}

func TestResult_WithVerdictDoesNotMutateOriginal(t *testing.T) {
	res := Score(neutralOpportunity(), midProfile(), Options{})
	out := res.WithVerdict(Verdict{Accepted: true})
	out.MatchedSkills[0] = "changed"
	if res.Verdict.Accepted || res.MatchedSkills[0] != "Go" {
		t.Fatalf("original result mutated: %+v", res)
	}
}
