package dto

import (
	"time"

	"outreach-engine/internal/domain/pipeline"
)

// PipelineSummary is the list view of a pipeline. The detail endpoint
// returns the full pipeline.
type PipelineSummary struct {
	ID            string     `json:"id"`
	OpportunityID string     `json:"opportunity_id"`
	Title         string     `json:"title"`
	Organization  string     `json:"organization"`
	Status        string     `json:"status"`
	Stage         string     `json:"stage"`
	MatchScore    int        `json:"match_score"`
	FollowUpsSent int        `json:"follow_ups_sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewPipelineSummary(p *pipeline.Pipeline) PipelineSummary {
	return PipelineSummary{
		ID:            p.ID,
		OpportunityID: p.OpportunityID,
		Title:         p.Opportunity.Title,
		Organization:  p.Opportunity.Organization,
		Status:        string(p.Status),
		Stage:         string(p.CurrentStage),
		MatchScore:    p.MatchScore,
		FollowUpsSent: p.Tracking.FollowUps,
		SentAt:        p.Tracking.SentAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type MarkEventsReadResponse struct {
	Marked int `json:"marked"`
}
