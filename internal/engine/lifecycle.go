package engine

import (
	"context"
	"fmt"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/events"
)

// Advance moves a pipeline to a new status. Transitions on a finished
// pipeline are reported as an error event as well as returned.
func (e *Engine) Advance(ctx context.Context, id string, to pipeline.Status, note string) (*pipeline.Pipeline, error) {
	p, err := e.mutate(ctx, id, func(p *pipeline.Pipeline, c *change) error {
		return c.advance(p, to, note)
	})
	e.reportTransitionError(id, err)
	return p, err
}

// Finalize records an outcome with its details and closes the pipeline.
func (e *Engine) Finalize(ctx context.Context, id string, outcome pipeline.Outcome, note string) (*pipeline.Pipeline, error) {
	p, err := e.mutate(ctx, id, func(p *pipeline.Pipeline, c *change) error {
		return c.finalize(p, outcome, note)
	})
	e.reportTransitionError(id, err)
	return p, err
}

func (e *Engine) reportTransitionError(id string, err error) {
	if err == nil {
		return
	}
	switch {
	case domain.IsTerminal(err):
		e.log.Printf("component=engine action=advance pipeline_id=%s status=error err=%v", id, err)
		e.publish(events.New(events.SystemError{Component: "pipeline", Message: err.Error()}, e.now()).For(id, ""))
	case domain.IsTransition(err), domain.IsValidation(err):
		e.log.Printf("component=engine action=advance pipeline_id=%s status=rejected err=%v", id, err)
	}
}

// OnTrackingEvent folds an asynchronous email event into the pipeline that
// owns trackingID. A reply during outreach moves the pipeline to
// response_received; a bounce or unsubscribe cancels pending follow-ups.
// Events for finished pipelines are ignored.
func (e *Engine) OnTrackingEvent(ctx context.Context, trackingID, kind string) (*pipeline.Pipeline, error) {
	k, ok := pipeline.ParseTrackingKind(kind)
	if !ok {
		return nil, domain.NewValidationError("kind", fmt.Sprintf("unknown tracking event %q", kind))
	}
	ent, ok := e.state.pipelines.byTrackingID(trackingID)
	if !ok {
		return nil, fmt.Errorf("tracking id %s: %w", trackingID, domain.ErrNotFound)
	}

	return e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
		if !p.ApplyTracking(k, c.now) {
			e.log.Printf("component=engine action=tracking pipeline_id=%s kind=%s status=ignored", p.ID, k)
			return nil
		}
		c.touched = true
		c.emit(p, events.TrackingReceived{Kind: string(k), TrackingID: trackingID})

		switch k {
		case pipeline.TrackingReplied:
			if p.Status.InOutreach() {
				if err := c.advance(p, pipeline.StatusResponseReceived, "reply received"); err != nil {
					return err
				}
			} else {
				p.AddNote("reply received", c.now)
			}
		case pipeline.TrackingBounced:
			p.AddNote("email bounced", c.now)
			c.cancel = "recipient bounced"
		case pipeline.TrackingUnsubscribed:
			p.AddNote("recipient unsubscribed", c.now)
			c.cancel = "recipient unsubscribed"
		}
		return nil
	})
}

func (e *Engine) CompleteReminder(ctx context.Context, pipelineID, reminderID string) (*pipeline.Pipeline, error) {
	return e.mutate(ctx, pipelineID, func(p *pipeline.Pipeline, c *change) error {
		if err := p.CompleteReminder(reminderID, c.now); err != nil {
			return fmt.Errorf("reminder %s: %w", reminderID, err)
		}
		c.touched = true
		return nil
	})
}

// TrackingIDForThread maps a mail thread back to the tracking id of the
// pipeline whose proposal started it.
func (e *Engine) TrackingIDForThread(threadID string) (string, bool) {
	if threadID == "" {
		return "", false
	}
	for _, p := range e.state.pipelines.snapshot() {
		if p.Tracking.ThreadID == threadID {
			return p.Tracking.TrackingID, true
		}
	}
	return "", false
}
