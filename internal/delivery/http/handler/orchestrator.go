package handler

import (
	"context"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/engine"
	"outreach-engine/internal/events"
	"outreach-engine/internal/followup"
	"outreach-engine/internal/queue"
)

// Orchestrator is the part of the engine the HTTP layer drives.
type Orchestrator interface {
	SubmitOpportunity(ctx context.Context, o opportunity.Opportunity, profile opportunity.Profile, priority queue.Priority) (engine.SubmitResult, error)
	ProcessNext(ctx context.Context) (engine.ProcessResult, error)
	RetryPipeline(ctx context.Context, id string, priority queue.Priority) error

	Pipelines(f engine.ListFilter) []*pipeline.Pipeline
	Pipeline(id string) (*pipeline.Pipeline, error)
	FollowUps(pipelineID string) []followup.FollowUp
	Advance(ctx context.Context, id string, to pipeline.Status, note string) (*pipeline.Pipeline, error)
	Finalize(ctx context.Context, id string, outcome pipeline.Outcome, note string) (*pipeline.Pipeline, error)
	CompleteReminder(ctx context.Context, pipelineID, reminderID string) (*pipeline.Pipeline, error)
	OnTrackingEvent(ctx context.Context, trackingID, kind string) (*pipeline.Pipeline, error)

	RunFollowUps(ctx context.Context) engine.FollowUpReport
	Sweep(ctx context.Context) engine.SweepReport
	HealthCheck(ctx context.Context) events.SystemStatus
	Metrics() domain.PipelineMetrics
	ReloadSettings() (config.Settings, error)
	Running() bool
}

// EventFeed is the read side of the event bus.
type EventFeed interface {
	Recent(limit int) []events.Event
	MarkRead(ids ...string) int
	Status() events.SystemStatus
}
