package engine

import (
	"context"
	"fmt"
	"strings"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/domain/proposal"
	"outreach-engine/internal/events"
)

// runAction carries out the side effect of an automated action that fired
// during a committed step. Reminder actions were already applied to the
// pipeline by the state machine.
func (e *Engine) runAction(ctx context.Context, p *pipeline.Pipeline, fa pipeline.FiredAction) {
	a := fa.Action
	switch a.Type {
	case pipeline.ActionGenerateReport:
		e.publish(events.New(events.ReportGenerated{
			Report: a.Params.Report,
			Stage:  string(fa.Stage),
			Body:   buildReport(a.Params.Report, p),
		}, e.now()).For(p.ID, p.OpportunityID))
	case pipeline.ActionSendEmail:
		e.sendTemplate(ctx, p, a.Params.Template)
	case pipeline.ActionUpdateStatus:
		note := "application status synced"
		if p.Outcome != nil {
			note += ": outcome=" + string(p.Outcome.Kind)
		}
		e.publish(events.New(events.StatusChanged{From: string(p.Status), To: string(p.Status), Note: note}, e.now()).For(p.ID, p.OpportunityID))
	case pipeline.ActionScheduleReminder:
		e.log.Printf("component=engine action=reminder_scheduled pipeline_id=%s type=%s", p.ID, a.Params.ReminderType)
	default:
		e.log.Printf("component=engine action=unknown_action pipeline_id=%s type=%s", p.ID, a.Type)
	}
}

func (e *Engine) sendTemplate(ctx context.Context, p *pipeline.Pipeline, template string) {
	subject, body, ok := proposal.Template(template, p.Opportunity, p.Profile)
	if !ok {
		e.publish(events.New(events.SystemWarning{Component: "actions", Message: "unknown email template " + template}, e.now()).For(p.ID, p.OpportunityID))
		return
	}
	if e.transport == nil {
		e.publish(events.New(events.SystemWarning{Component: "actions", Message: "no email transport configured"}, e.now()).For(p.ID, p.OpportunityID))
		return
	}

	cctx, cancel := e.callContext(ctx)
	res, err := e.transport.Send(cctx, Message{
		Recipient:  p.Opportunity.Contact,
		Sender:     p.Profile.Email,
		Subject:    subject,
		Body:       body,
		TrackingID: p.Tracking.TrackingID,
		ThreadID:   p.Tracking.ThreadID,
	})
	cancel()
	if err != nil {
		terr := &domain.TransportError{Recipient: p.Opportunity.Contact, Cause: err}
		e.log.Printf("component=engine action=send_template template=%s pipeline_id=%s status=error err=%v", template, p.ID, terr)
		e.publish(events.New(events.SystemError{Component: "email", Message: terr.Error()}, e.now()).For(p.ID, p.OpportunityID))
		return
	}

	e.publish(events.New(events.EmailSent{Recipient: p.Opportunity.Contact, Subject: subject, MessageID: res.MessageID}, e.now()).For(p.ID, p.OpportunityID))
	_, _ = e.mutate(ctx, p.ID, func(w *pipeline.Pipeline, c *change) error {
		w.AddNote("sent "+strings.ReplaceAll(template, "_", " ")+" email", c.now)
		c.touched = true
		return nil
	})
}

func buildReport(name string, p *pipeline.Pipeline) string {
	o := p.Opportunity
	switch name {
	case "match_report":
		return fmt.Sprintf("%s at %s: match score %d, required skills %s",
			o.Title, o.Organization, p.MatchScore, strings.Join(o.Skills, ", "))
	case "offer_summary":
		budget := "not disclosed"
		if o.Budget.Max > 0 {
			budget = fmt.Sprintf("%.0f-%.0f %s", o.Budget.Min, o.Budget.Max, o.Budget.Currency)
		}
		return fmt.Sprintf("offer from %s for %s, advertised budget %s", o.Organization, o.Title, budget)
	case "outcome_report":
		kind := "unknown"
		if p.Outcome != nil {
			kind = string(p.Outcome.Kind)
		}
		days := p.UpdatedAt.Sub(p.CreatedAt).Hours() / 24
		return fmt.Sprintf("%s at %s finished as %s after %.1f days, follow-ups=%d replies=%d",
			o.Title, o.Organization, kind, days, p.Tracking.FollowUps, p.Tracking.Replies)
	default:
		return name
	}
}
