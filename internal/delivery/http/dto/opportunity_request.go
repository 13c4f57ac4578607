package dto

import "outreach-engine/internal/domain/opportunity"

type SubmitOpportunityRequest struct {
	Opportunity opportunity.Opportunity `json:"opportunity"`
	// Profile is optional; the configured default profile is used when it
	// is omitted.
	Profile  *opportunity.Profile `json:"profile,omitempty"`
	Priority string               `json:"priority,omitempty"`
}
