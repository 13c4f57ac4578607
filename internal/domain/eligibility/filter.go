package eligibility

import (
	"fmt"
	"strings"
	"time"

	"outreach-engine/internal/domain/matching"
	"outreach-engine/internal/domain/opportunity"
)

const (
	CodeExcludedOrganization = "excluded_organization"
	CodeOutsideWorkingHours  = "outside_working_hours"
	CodeScoreTooLow          = "score_too_low"
	CodeDuplicate            = "duplicate"
)

// WorkingHours is a daily window expressed in minutes since midnight.
// Equal bounds disable the window; Start > End wraps past midnight.
type WorkingHours struct {
	Start    int
	End      int
	Location *time.Location
}

func ParseWorkingHours(start, end, tz string) (WorkingHours, error) {
	s, err := parseClock(start)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("working hours start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("working hours end: %w", err)
	}
	loc := time.UTC
	if tz = strings.TrimSpace(tz); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return WorkingHours{}, fmt.Errorf("working hours timezone: %w", err)
		}
	}
	return WorkingHours{Start: s, End: e, Location: loc}, nil
}

func (w WorkingHours) Contains(now time.Time) bool {
	if w.Start == w.End {
		return true
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

type Rules struct {
	ExcludedOrganizations []string
	MinimumMatchScore     int
	WorkingHours          WorkingHours
}

// ActivityChecker answers whether an opportunity already has queued work or
// a live pipeline.
type ActivityChecker interface {
	IsActive(opportunityID string) bool
}

// Filter runs the eligibility checks in order and stops at the first failure.
// It has no side effects.
func Filter(o opportunity.Opportunity, score int, rules Rules, now time.Time, active ActivityChecker) matching.Verdict {
	if isExcluded(rules.ExcludedOrganizations, o.Organization) {
		return reject(CodeExcludedOrganization, fmt.Sprintf("organization %q is excluded", o.Organization))
	}
	if !rules.WorkingHours.Contains(now) {
		return reject(CodeOutsideWorkingHours, "outside working hours")
	}
	if score < rules.MinimumMatchScore {
		return reject(CodeScoreTooLow, fmt.Sprintf("score too low: %d < %d", score, rules.MinimumMatchScore))
	}
	if active != nil && active.IsActive(o.ID) {
		return reject(CodeDuplicate, "duplicate submission: opportunity already queued or in progress")
	}
	return matching.Verdict{Accepted: true}
}

func reject(code, reason string) matching.Verdict {
	return matching.Verdict{Accepted: false, Code: code, Reason: reason}
}

func isExcluded(list []string, org string) bool {
	org = strings.ToLower(strings.TrimSpace(org))
	if org == "" {
		return false
	}
	for _, ex := range list {
		if strings.ToLower(strings.TrimSpace(ex)) == org {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
