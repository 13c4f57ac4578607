package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/domain/proposal"
	"outreach-engine/internal/events"
	"outreach-engine/internal/followup"
	"outreach-engine/internal/worker"
)

type FollowUpReport struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunFollowUps executes every follow-up that is due. When several are due
// for one pipeline, e.g. after downtime, only the latest goes out and the
// earlier ones are skipped. Sends run on a bounded worker pool.
func (e *Engine) RunFollowUps(ctx context.Context) FollowUpReport {
	now := e.now()
	due := e.state.FollowUps.Due(now)
	if len(due) == 0 {
		return FollowUpReport{}
	}

	latest := make(map[string]followup.FollowUp, len(due))
	for _, f := range due {
		if cur, ok := latest[f.PipelineID]; !ok || f.Sequence > cur.Sequence {
			latest[f.PipelineID] = f
		}
	}

	var report FollowUpReport
	for _, f := range due {
		if latest[f.PipelineID].ID == f.ID {
			continue
		}
		e.skipFollowUp(ctx, f, fmt.Sprintf("superseded by follow-up #%d", latest[f.PipelineID].Sequence))
		report.Skipped++
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var outcomesMu sync.Mutex
	outcomes := make(map[string]followup.Status, len(ids))
	jobs := make([]worker.Job, 0, len(ids))
	for _, id := range ids {
		f := latest[id]
		jobs = append(jobs, worker.Job{Name: f.ID, Fn: func(ctx context.Context) error {
			st, err := e.executeFollowUp(ctx, f)
			outcomesMu.Lock()
			outcomes[f.ID] = st
			outcomesMu.Unlock()
			return err
		}})
	}

	s := e.settings.Current()
	opts := worker.Options{Workers: s.FollowUpWorkers, Interval: s.FollowUpRate}
	for _, r := range worker.Run(ctx, opts, jobs) {
		if r.Err == nil {
			continue
		}
		outcomesMu.Lock()
		_, finished := outcomes[r.Name]
		outcomesMu.Unlock()
		switch {
		case finished:
			e.log.Printf("component=engine tick=follow_up follow_up_id=%s status=error err=%v", r.Name, r.Err)
		case errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded):
			// Never started: hand it back to the next tick.
			e.state.FollowUps.Requeue(r.Name)
		default:
			_ = e.state.FollowUps.Complete(r.Name, followup.StatusFailed, r.Err.Error(), e.now())
			outcomes[r.Name] = followup.StatusFailed
			e.log.Printf("component=engine tick=follow_up follow_up_id=%s status=failed err=%v", r.Name, r.Err)
		}
	}
	for _, st := range outcomes {
		switch st {
		case followup.StatusSent:
			report.Sent++
		case followup.StatusSkipped:
			report.Skipped++
		case followup.StatusFailed:
			report.Failed++
		}
	}
	e.log.Printf("component=engine tick=follow_up due=%d sent=%d skipped=%d failed=%d", len(due), report.Sent, report.Skipped, report.Failed)
	return report
}

func (e *Engine) executeFollowUp(ctx context.Context, f followup.FollowUp) (followup.Status, error) {
	ent, ok := e.state.pipelines.get(f.PipelineID)
	if !ok {
		e.skipFollowUp(ctx, f, "pipeline missing")
		return followup.StatusSkipped, nil
	}
	snap := ent.snapshot()
	if reason := followup.SkipReason(f.Condition, snap); reason != "" {
		e.skipFollowUp(ctx, f, reason)
		return followup.StatusSkipped, nil
	}

	subject, body := proposal.FollowUp(snap.Opportunity, f.IsFinal())
	msg := Message{
		Recipient:  snap.Opportunity.Contact,
		Sender:     snap.Profile.Email,
		Subject:    subject,
		Body:       body,
		TrackingID: snap.Tracking.TrackingID,
		ThreadID:   snap.Tracking.ThreadID,
	}
	var (
		res SendResult
		err error
	)
	if e.transport == nil {
		err = fmt.Errorf("no email transport configured")
	} else {
		cctx, cancel := e.callContext(ctx)
		res, err = e.transport.Send(cctx, msg)
		cancel()
	}
	if err != nil {
		terr := &domain.TransportError{Recipient: msg.Recipient, Cause: err}
		_ = e.state.FollowUps.Complete(f.ID, followup.StatusFailed, terr.Error(), e.now())
		_, _ = e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
			if !p.IsTerminal() {
				p.Tracking.MarkFollowUpHandled(f.Sequence)
				p.AddNote(fmt.Sprintf("follow-up #%d failed: %v", f.Sequence, err), c.now)
				c.touched = true
			}
			return nil
		})
		e.publish(events.New(events.SystemError{Component: "email", Message: terr.Error()}, e.now()).For(snap.ID, snap.OpportunityID))
		return followup.StatusFailed, terr
	}

	_, err = e.mutateEntry(ctx, ent, func(p *pipeline.Pipeline, c *change) error {
		c.emit(p, events.FollowUpSent{FollowUpID: f.ID, Sequence: f.Sequence, Condition: string(f.Condition), MessageID: res.MessageID})
		if p.IsTerminal() {
			return nil
		}
		p.Tracking.FollowUps++
		p.Tracking.MarkFollowUpHandled(f.Sequence)
		p.AddNote(fmt.Sprintf("follow-up #%d sent (%s)", f.Sequence, f.Condition), c.now)
		c.touched = true
		if p.Tracking.Replies > snap.Tracking.Replies {
			// The reply landed while the send was in flight.
			e.log.Printf("component=engine action=follow_up follow_up_id=%s pipeline_id=%s status=sent_after_reply", f.ID, p.ID)
			p.AddNote(fmt.Sprintf("follow-up #%d went out after a reply arrived", f.Sequence), c.now)
			c.emit(p, events.SystemWarning{Component: "follow_up", Message: fmt.Sprintf("follow-up #%d sent after a reply arrived", f.Sequence)})
		}
		if p.Status == pipeline.StatusProposalSent {
			return c.advance(p, pipeline.StatusFollowUpSent, fmt.Sprintf("follow-up #%d sent", f.Sequence))
		}
		return nil
	})
	if err != nil {
		e.log.Printf("component=engine action=follow_up follow_up_id=%s status=error err=%v", f.ID, err)
	}
	_ = e.state.FollowUps.Complete(f.ID, followup.StatusSent, "", e.now())
	return followup.StatusSent, nil
}

func (e *Engine) skipFollowUp(ctx context.Context, f followup.FollowUp, reason string) {
	_ = e.state.FollowUps.Complete(f.ID, followup.StatusSkipped, reason, e.now())
	_, err := e.mutate(ctx, f.PipelineID, func(p *pipeline.Pipeline, c *change) error {
		if !p.IsTerminal() {
			p.Tracking.MarkFollowUpHandled(f.Sequence)
			p.AddNote(fmt.Sprintf("follow-up #%d skipped: %s", f.Sequence, reason), c.now)
			c.touched = true
		}
		c.emit(p, events.FollowUpSkipped{FollowUpID: f.ID, Sequence: f.Sequence, Condition: string(f.Condition), Reason: reason})
		return nil
	})
	if err != nil {
		e.publish(events.New(events.FollowUpSkipped{FollowUpID: f.ID, Sequence: f.Sequence, Condition: string(f.Condition), Reason: reason}, e.now()).For(f.PipelineID, ""))
	}
}
