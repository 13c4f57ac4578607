package engine

import (
	"context"

	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/domain/proposal"
)

type ProposalGenerator interface {
	GenerateProposal(ctx context.Context, o opportunity.Opportunity, p opportunity.Profile) (proposal.Proposal, error)
}

type Message struct {
	Recipient  string
	Sender     string
	Subject    string
	Body       string
	TrackingID string
	// ThreadID keeps follow-ups in the conversation of the first email.
	ThreadID string
}

type SendResult struct {
	MessageID string
	ThreadID  string
}

type Transport interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// PipelineRepository persists pipeline snapshots. Save is called with the
// pipeline's lock held, so implementations must not call back into the
// engine.
type PipelineRepository interface {
	Save(ctx context.Context, p *pipeline.Pipeline) error
	LoadAll(ctx context.Context) ([]*pipeline.Pipeline, error)
}

// CounterStore mirrors the daily dispatch counter outside the process so a
// restart on the same day keeps honouring the cap.
type CounterStore interface {
	LoadDailyCount(ctx context.Context, day string) (int, error)
	SaveDailyCount(ctx context.Context, day string, count int) error
}

// HealthChecker is implemented by collaborators that can report on their
// own reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
