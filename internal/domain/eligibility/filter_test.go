package eligibility

import (
	"strings"
	"testing"
	"time"

	"outreach-engine/internal/domain/opportunity"
)

type activeSet map[string]bool

func (a activeSet) IsActive(id string) bool { return a[id] }

var noon = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func opp() opportunity.Opportunity {
	return opportunity.Opportunity{ID: "opp-1", Organization: "Acme"}
}

func TestFilter_Accepts(t *testing.T) {
	v := Filter(opp(), 80, Rules{MinimumMatchScore: 60}, noon, activeSet{})
	if !v.Accepted {
		t.Fatalf("expected accepted, got %+v", v)
	}
}

func TestFilter_ScoreTooLow(t *testing.T) {
	v := Filter(opp(), 40, Rules{MinimumMatchScore: 60}, noon, nil)
	if v.Accepted || v.Code != CodeScoreTooLow {
		t.Fatalf("expected score rejection, got %+v", v)
	}
	if !strings.Contains(v.Reason, "score too low") || !strings.Contains(v.Reason, "40") {
		t.Fatalf("reason should carry the score: %q", v.Reason)
	}
}

func TestFilter_FirstFailureWins(t *testing.T) {
	hours, err := ParseWorkingHours("09:00", "10:00", "UTC")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	rules := Rules{
		ExcludedOrganizations: []string{" acme "},
		MinimumMatchScore:     90,
		WorkingHours:          hours,
	}
	v := Filter(opp(), 10, rules, noon, activeSet{"opp-1": true})
	if v.Code != CodeExcludedOrganization {
		t.Fatalf("expected exclusion to win, got %+v", v)
	}

	rules.ExcludedOrganizations = nil
	v = Filter(opp(), 10, rules, noon, activeSet{"opp-1": true})
	if v.Code != CodeOutsideWorkingHours {
		t.Fatalf("expected working hours to win, got %+v", v)
	}

	rules.WorkingHours = WorkingHours{}
	v = Filter(opp(), 10, rules, noon, activeSet{"opp-1": true})
	if v.Code != CodeScoreTooLow {
		t.Fatalf("expected score to win, got %+v", v)
	}

	v = Filter(opp(), 95, rules, noon, activeSet{"opp-1": true})
	if v.Code != CodeDuplicate {
		t.Fatalf("expected duplicate, got %+v", v)
	}
}

func TestFilter_IsPure(t *testing.T) {
	active := activeSet{}
	for i := 0; i < 3; i++ {
		if v := Filter(opp(), 70, Rules{MinimumMatchScore: 50}, noon, active); !v.Accepted {
			t.Fatalf("call %d: expected accepted, got %+v", i, v)
		}
	}
	if len(active) != 0 {
		t.Fatalf("filter must not mutate state")
	}
}

func TestWorkingHours_Contains(t *testing.T) {
	day, _ := ParseWorkingHours("09:00", "17:30", "")
	if !day.Contains(noon) {
		t.Fatalf("noon should be inside 09:00-17:30")
	}
	if day.Contains(time.Date(2024, 6, 3, 17, 30, 0, 0, time.UTC)) {
		t.Fatalf("end bound is exclusive")
	}

	night, _ := ParseWorkingHours("22:00", "06:00", "")
	if !night.Contains(time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)) || !night.Contains(time.Date(2024, 6, 3, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("overnight window should wrap")
	}
	if night.Contains(noon) {
		t.Fatalf("noon is outside an overnight window")
	}

	if _, err := ParseWorkingHours("9am", "17:00", ""); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseWorkingHours("09:00", "17:00", "Not/AZone"); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestWorkingHours_Timezone(t *testing.T) {
	w, err := ParseWorkingHours("09:00", "17:00", "Asia/Jakarta")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 03:00 UTC is 10:00 in Jakarta
	if !w.Contains(time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected inside window in Jakarta time")
	}
}
