package engine

import (
	"context"
	"errors"
	"fmt"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/domain/proposal"
	"outreach-engine/internal/events"
	"outreach-engine/internal/queue"
)

type ProcessResult struct {
	Processed     bool            `json:"processed"`
	OpportunityID string          `json:"opportunity_id,omitempty"`
	PipelineID    string          `json:"pipeline_id,omitempty"`
	Status        pipeline.Status `json:"status,omitempty"`
}

// ProcessNext takes at most one item off the queue and carries it through
// generation and dispatch. Failures are published on the bus, leave the
// pipeline at the status it had before the failing call and are never
// re-queued.
func (e *Engine) ProcessNext(ctx context.Context) (ProcessResult, error) {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	now := e.now()
	e.state.Counter.SetLimit(e.settings.Current().MaxDailyApplications)
	if e.state.Counter.ResetIfNewDay(now) {
		e.log.Printf("component=engine tick=processor action=daily_reset day=%s", queue.DayKey(now))
	}

	item, ok := e.state.Queue.Pop(now)
	if !ok {
		return ProcessResult{}, nil
	}
	defer e.state.Queue.Release(item.Opportunity.ID)

	ent := e.ensurePipeline(ctx, item)
	res := ProcessResult{Processed: true, OpportunityID: item.Opportunity.ID}

	snap := ent.snapshot()
	res.PipelineID, res.Status = snap.ID, snap.Status
	if !stalled(snap.Status) {
		e.log.Printf("component=engine tick=processor pipeline_id=%s status=skipped reason=already_%s", snap.ID, snap.Status)
		return res, nil
	}

	prop, err := e.proposalFor(ctx, snap)
	if err != nil {
		return res, err
	}

	if snap.Status != pipeline.StatusProposalGenerated {
		snap, err = e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
			if p.Status == pipeline.StatusDiscovered {
				if err := c.advance(p, pipeline.StatusAnalyzing, "analysis started"); err != nil {
					return err
				}
			}
			pr := prop
			p.Proposal = &pr
			if err := c.advance(p, pipeline.StatusProposalGenerated, fmt.Sprintf("proposal generated (%s)", prop.Source)); err != nil {
				return err
			}
			c.emit(p, events.ProposalGenerated{Subject: prop.Subject, Source: string(prop.Source), FallbackReason: prop.FallbackReason})
			return nil
		})
		res.Status = snap.Status
		if err != nil {
			return res, err
		}
	}

	snap, err = e.sendProposal(ctx, ent, snap, prop)
	res.Status = snap.Status
	return res, err
}

func (ent *entry) snapshot() *pipeline.Pipeline {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.p.Clone()
}

func (e *Engine) ensurePipeline(ctx context.Context, item queue.Item) *entry {
	if item.PipelineID != "" {
		if ent, ok := e.state.pipelines.get(item.PipelineID); ok {
			return ent
		}
	}
	if ent, ok := e.state.pipelines.findPair(item.Opportunity.ID, item.Profile.ID); ok {
		return ent
	}

	now := e.now()
	p := pipeline.New(item.Opportunity, item.Profile.ID, item.MatchScore, now)
	p.Profile = item.Profile
	ent := e.state.pipelines.add(p)

	ent.mu.Lock()
	e.persist(ctx, ent.p)
	ent.mu.Unlock()

	e.publish(events.New(events.StatusChanged{To: string(pipeline.StatusDiscovered), Note: "pipeline created"}, now).For(p.ID, p.OpportunityID))
	return ent
}

// proposalFor returns the proposal to send: the stored one when a previous
// attempt already generated it, otherwise a fresh one from the generator or
// the fallback template.
func (e *Engine) proposalFor(ctx context.Context, p *pipeline.Pipeline) (proposal.Proposal, error) {
	if p.Status == pipeline.StatusProposalGenerated && p.Proposal != nil {
		return *p.Proposal, nil
	}
	if e.generator == nil {
		return proposal.Fallback(p.Opportunity, p.Profile, "no generator configured"), nil
	}

	cctx, cancel := e.callContext(ctx)
	prop, err := e.generator.GenerateProposal(cctx, p.Opportunity, p.Profile)
	cancel()
	if err == nil {
		if prop.Source == "" {
			prop.Source = proposal.SourceAI
		}
		return prop, nil
	}

	gerr := &domain.GenerationError{OpportunityID: p.OpportunityID, Cause: err}
	e.log.Printf("component=engine step=generate pipeline_id=%s status=error err=%v", p.ID, gerr)
	if ctx.Err() != nil || !e.settings.Current().FallbackOnGenerationError {
		e.publish(events.New(events.SystemWarning{Component: "generator", Message: gerr.Error()}, e.now()).For(p.ID, p.OpportunityID))
		return proposal.Proposal{}, gerr
	}
	e.publish(events.New(events.SystemWarning{Component: "generator", Message: "using fallback template: " + gerr.Error()}, e.now()).For(p.ID, p.OpportunityID))
	return proposal.Fallback(p.Opportunity, p.Profile, err.Error()), nil
}

func (e *Engine) sendProposal(ctx context.Context, ent *entry, snap *pipeline.Pipeline, prop proposal.Proposal) (*pipeline.Pipeline, error) {
	recipient := snap.Opportunity.Contact
	var (
		res SendResult
		err error
	)
	if e.transport == nil {
		err = errors.New("no email transport configured")
	} else {
		cctx, cancel := e.callContext(ctx)
		res, err = e.transport.Send(cctx, Message{
			Recipient:  recipient,
			Sender:     snap.Profile.Email,
			Subject:    prop.Subject,
			Body:       prop.Body(),
			TrackingID: snap.Tracking.TrackingID,
		})
		cancel()
	}
	if err != nil {
		terr := &domain.TransportError{Recipient: recipient, Cause: err}
		e.log.Printf("component=engine step=send pipeline_id=%s status=error err=%v", snap.ID, terr)
		after, _ := e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
			p.AddNote("dispatch failed: "+err.Error(), c.now)
			c.touched = true
			return nil
		})
		e.publish(events.New(events.SystemError{Component: "email", Message: terr.Error()}, e.now()).For(snap.ID, snap.OpportunityID))
		return after, terr
	}

	now := e.now()
	if !e.state.Counter.Increment(now) {
		e.log.Printf("component=engine step=send pipeline_id=%s status=warning reason=counter_at_limit", snap.ID)
	}
	e.saveCounter(ctx)

	after, err := e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
		p.MarkSent(res.MessageID, res.ThreadID, c.now)
		if err := c.advance(p, pipeline.StatusProposalSent, "proposal sent to "+recipient); err != nil {
			return err
		}
		c.emit(p, events.EmailSent{Recipient: recipient, Subject: prop.Subject, MessageID: res.MessageID})
		return nil
	})
	if err != nil {
		e.log.Printf("component=engine step=mark_sent pipeline_id=%s status=error err=%v", snap.ID, err)
		return after, err
	}

	planned := e.state.FollowUps.Schedule(after.ID, *after.Tracking.SentAt, e.settings.Current().FollowUpOffsets)
	e.log.Printf("component=engine step=send pipeline_id=%s message_id=%s status=ok follow_ups=%d", after.ID, res.MessageID, len(planned))
	return after, nil
}

func (e *Engine) saveCounter(ctx context.Context) {
	if e.counters == nil {
		return
	}
	day, count, _ := e.state.Counter.Snapshot()
	cctx, cancel := e.callContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := e.counters.SaveDailyCount(cctx, day, count); err != nil {
		e.log.Printf("component=engine action=save_counter day=%s status=error err=%v", day, err)
	}
}

// RetryPipeline puts a stalled pipeline back on the queue. Only pipelines
// that never got their proposal out can be retried.
func (e *Engine) RetryPipeline(ctx context.Context, id string, priority queue.Priority) error {
	snap, err := e.Pipeline(id)
	if err != nil {
		return err
	}
	if snap.IsTerminal() {
		return &domain.PipelineTerminalError{PipelineID: id, Status: string(snap.Status)}
	}
	if !stalled(snap.Status) {
		return domain.NewValidationError("status", fmt.Sprintf("pipeline in %s has nothing to retry", snap.Status))
	}
	if priority == 0 {
		priority = PriorityFor(snap.Opportunity)
	}

	now := e.now()
	item := queue.Item{
		Opportunity: snap.Opportunity,
		Profile:     snap.Profile,
		Priority:    priority,
		MatchScore:  snap.MatchScore,
		EnqueuedAt:  now,
		PipelineID:  id,
	}
	if !e.state.Queue.Enqueue(item, now) {
		if e.state.Counter.Reached(now) {
			return domain.ErrDailyLimitReached
		}
		return domain.ErrDuplicateSubmission
	}
	_, err = e.mutate(ctx, id, func(p *pipeline.Pipeline, c *change) error {
		p.AddNote("retry requested", c.now)
		c.touched = true
		return nil
	})
	e.log.Printf("component=engine action=retry pipeline_id=%s priority=%s", id, priority)
	return err
}
