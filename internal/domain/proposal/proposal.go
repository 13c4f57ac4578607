package proposal

import (
	"fmt"
	"strings"

	"outreach-engine/internal/domain/opportunity"
)

type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

type Proposal struct {
	Subject        string   `json:"subject"`
	Content        string   `json:"content"`
	KeyPoints      []string `json:"key_points"`
	CallToAction   string   `json:"call_to_action"`
	Source         Source   `json:"source"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

func (p Proposal) IsFallback() bool {
	return p.Source == SourceFallback
}

func (p Proposal) Body() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Content))
	if len(p.KeyPoints) > 0 {
		b.WriteString("\n\n")
		for _, kp := range p.KeyPoints {
			kp = strings.TrimSpace(kp)
			if kp == "" {
				continue
			}
			b.WriteString("- ")
			b.WriteString(kp)
			b.WriteString("\n")
		}
	}
	if cta := strings.TrimSpace(p.CallToAction); cta != "" {
		b.WriteString("\n")
		b.WriteString(cta)
	}
	return strings.TrimSpace(b.String())
}

// Fallback renders the template proposal used when the generator is
// unavailable. Output depends only on its inputs.
func Fallback(o opportunity.Opportunity, p opportunity.Profile, reason string) Proposal {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "I"
	}

	skills := overlap(o.Skills, p.Skills)
	keyPoints := make([]string, 0, 3)
	if len(skills) > 0 {
		keyPoints = append(keyPoints, "Hands-on experience with "+strings.Join(skills, ", "))
	}
	if p.YearsExperience > 0 {
		keyPoints = append(keyPoints, fmt.Sprintf("%d years of professional experience", p.YearsExperience))
	}
	if o.Industry != "" {
		keyPoints = append(keyPoints, "Familiar with the "+o.Industry+" domain")
	}

	intro := "Hello,"
	if name != "I" {
		intro = fmt.Sprintf("Hello, my name is %s.", name)
	}
	content := fmt.Sprintf(
		"%s I came across the %s role at %s and believe my background is a strong fit.",
		intro, o.Title, o.Organization,
	)

	return Proposal{
		Subject:        fmt.Sprintf("Application: %s at %s", o.Title, o.Organization),
		Content:        content,
		KeyPoints:      keyPoints,
		CallToAction:   "Would you be open to a short call this week to discuss how I can help?",
		Source:         SourceFallback,
		FallbackReason: reason,
	}
}

func FollowUp(o opportunity.Opportunity, final bool) (string, string) {
	subject := fmt.Sprintf("Re: Application: %s at %s", o.Title, o.Organization)
	body := fmt.Sprintf(
		"Hello,\n\nI wanted to follow up on my application for the %s role at %s. I remain very interested and happy to share more details.",
		o.Title, o.Organization,
	)
	if final {
		body = fmt.Sprintf(
			"Hello,\n\nThis is my last note regarding the %s role at %s. If the timing is not right I completely understand; I would be glad to reconnect in the future.",
			o.Title, o.Organization,
		)
	}
	return subject, body
}

// Template renders a named transactional email. ok is false for unknown
// template names.
func Template(name string, o opportunity.Opportunity, p opportunity.Profile) (subject, body string, ok bool) {
	signature := strings.TrimSpace(p.Name)
	if signature == "" {
		signature = "Best regards"
	} else {
		signature = "Best regards,\n" + signature
	}
	switch name {
	case "interview_confirmation":
		subject = fmt.Sprintf("Interview confirmation: %s at %s", o.Title, o.Organization)
		body = fmt.Sprintf(
			"Hello,\n\nThank you for the invitation to interview for the %s role at %s. I confirm my attendance and look forward to speaking with you.\n\n%s",
			o.Title, o.Organization, signature,
		)
		return subject, body, true
	default:
		return "", "", false
	}
}

func overlap(required, have []string) []string {
	out := make([]string, 0, len(required))
	for _, r := range required {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(h)) {
				out = append(out, strings.TrimSpace(h))
				break
			}
		}
	}
	return out
}
