package opportunity

import (
	"net/mail"
	"strings"
	"time"

	"outreach-engine/internal/domain"
)

type ExperienceTier int

const (
	TierEntry ExperienceTier = iota + 1
	TierMid
	TierSenior
	TierExpert
)

func (t ExperienceTier) String() string {
	switch t {
	case TierEntry:
		return "entry"
	case TierMid:
		return "mid"
	case TierSenior:
		return "senior"
	case TierExpert:
		return "expert"
	default:
		return "unknown"
	}
}

func (t ExperienceTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ExperienceTier) UnmarshalText(b []byte) error {
	v, err := ParseExperienceTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseExperienceTier(s string) (ExperienceTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "junior":
		return TierEntry, nil
	case "mid", "intermediate", "":
		return TierMid, nil
	case "senior":
		return TierSenior, nil
	case "expert":
		return TierExpert, nil
	}
	return 0, domain.NewValidationError("experience_level", "unknown experience tier "+s)
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) IsPressing() bool {
	return u == UrgencyHigh || u == UrgencyUrgent
}

type Budget struct {
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Currency string  `json:"currency,omitempty" yaml:"currency,omitempty"`
}

type Opportunity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Industry     string    `json:"industry"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Skills       []string  `json:"skills"`
	Budget       Budget    `json:"budget"`
	Urgency      Urgency   `json:"urgency"`
	PostedAt     time.Time `json:"posted_at"`
	Deadline     time.Time `json:"deadline,omitempty"`
	Contact      string    `json:"contact"`
	Source       string    `json:"source,omitempty"`
}

func (o Opportunity) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return domain.NewValidationError("id", "is required")
	}
	if strings.TrimSpace(o.Title) == "" {
		return domain.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(o.Organization) == "" {
		return domain.NewValidationError("organization", "is required")
	}
	if strings.TrimSpace(o.Contact) == "" {
		return domain.NewValidationError("contact", "is required")
	}
	if _, err := mail.ParseAddress(o.Contact); err != nil {
		return domain.NewValidationError("contact", "is not a valid email address")
	}
	if o.Budget.Min < 0 || o.Budget.Max < 0 {
		return domain.NewValidationError("budget", "must not be negative")
	}
	if o.Budget.Max > 0 && o.Budget.Min > o.Budget.Max {
		return domain.NewValidationError("budget", "min exceeds max")
	}
	switch o.Urgency {
	case "", UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
	default:
		return domain.NewValidationError("urgency", "unknown urgency "+string(o.Urgency))
	}
	if !o.Deadline.IsZero() && !o.PostedAt.IsZero() && o.Deadline.Before(o.PostedAt) {
		return domain.NewValidationError("deadline", "is before posted_at")
	}
	return nil
}

// Expired reports whether the deadline has passed. Opportunities without a
// deadline never expire.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.Deadline.IsZero() && now.After(o.Deadline)
}

type Profile struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Email           string         `json:"email" yaml:"email"`
	Skills          []string       `json:"skills" yaml:"skills"`
	Industries      []string       `json:"industries" yaml:"industries"`
	Experience      ExperienceTier `json:"experience" yaml:"experience"`
	YearsExperience int            `json:"years_experience" yaml:"years_experience"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.NewValidationError("profile.id", "is required")
	}
	if p.Experience < TierEntry || p.Experience > TierExpert {
		return domain.NewValidationError("profile.experience", "must be between entry and expert")
	}
	if p.YearsExperience < 0 {
		return domain.NewValidationError("profile.years_experience", "must not be negative")
	}
	return nil
}
