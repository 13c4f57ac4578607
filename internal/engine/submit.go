package engine

import (
	"context"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/eligibility"
	"outreach-engine/internal/domain/matching"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/events"
	"outreach-engine/internal/queue"
)

const CodeDailyLimit = "daily_limit"

type SubmitResult struct {
	Accepted   bool            `json:"accepted"`
	Code       string          `json:"code,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Match      matching.Result `json:"match"`
	Priority   string          `json:"priority,omitempty"`
	PipelineID string          `json:"pipeline_id,omitempty"`
}

// PriorityFor derives a queue priority from the opportunity's urgency.
func PriorityFor(o opportunity.Opportunity) queue.Priority {
	switch o.Urgency {
	case opportunity.UrgencyUrgent, opportunity.UrgencyHigh:
		return queue.PriorityHigh
	case opportunity.UrgencyLow:
		return queue.PriorityLow
	default:
		return queue.PriorityMedium
	}
}

// SubmitOpportunity scores and filters o for profile and enqueues it when
// eligible. It never blocks on I/O. Malformed input is the only error; a
// rejection is reported through the result.
func (e *Engine) SubmitOpportunity(ctx context.Context, o opportunity.Opportunity, profile opportunity.Profile, priority queue.Priority) (SubmitResult, error) {
	if err := o.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if profile.ID == "" {
		if def, ok := e.defaultProfile(); ok {
			profile = def
		}
	}
	if err := profile.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if priority == 0 {
		priority = PriorityFor(o)
	}

	now := e.now()
	s := e.settings.Current()
	res := matching.Score(o, profile, s.ScoringOptions())
	verdict := eligibility.Filter(o, res.Score, s.EligibilityRules(), now, e)
	res = res.WithVerdict(verdict)

	if !verdict.Accepted {
		e.reject(o, res, verdict.Code, verdict.Reason)
		return SubmitResult{Code: verdict.Code, Reason: verdict.Reason, Match: res}, nil
	}

	item := queue.Item{
		Opportunity: o,
		Profile:     profile,
		Priority:    priority,
		MatchScore:  res.Score,
		EnqueuedAt:  now,
	}
	if ent, ok := e.state.pipelines.findPair(o.ID, profile.ID); ok {
		ent.mu.Lock()
		item.PipelineID = ent.p.ID
		ent.mu.Unlock()
	}

	if !e.state.Queue.Enqueue(item, now) {
		code, reason := eligibility.CodeDuplicate, domain.ErrDuplicateSubmission.Error()+": opportunity already queued"
		if e.state.Counter.Reached(now) {
			code, reason = CodeDailyLimit, domain.ErrDailyLimitReached.Error()
		}
		res = res.WithVerdict(matching.Verdict{Code: code, Reason: reason})
		e.reject(o, res, code, reason)
		return SubmitResult{Code: code, Reason: reason, Match: res}, nil
	}

	e.log.Printf("component=engine action=submit opportunity_id=%s score=%d priority=%s status=queued", o.ID, res.Score, priority)
	e.publish(events.New(events.JobDiscovered{
		Title:        o.Title,
		Organization: o.Organization,
		Score:        res.Score,
		Priority:     priority.String(),
	}, now).For(item.PipelineID, o.ID))

	return SubmitResult{Accepted: true, Match: res, Priority: priority.String(), PipelineID: item.PipelineID}, nil
}

func (e *Engine) reject(o opportunity.Opportunity, res matching.Result, code, reason string) {
	e.log.Printf("component=engine action=submit opportunity_id=%s score=%d status=rejected code=%s", o.ID, res.Score, code)
	e.publish(events.New(events.JobRejected{Code: code, Reason: reason, Score: res.Score}, e.now()).For("", o.ID))
}
