package pipeline

import (
	"fmt"
	"strings"
	"time"

	"outreach-engine/internal/domain"

	"github.com/google/uuid"
)

// Advance moves p to status to. On any error p is left exactly as it was.
func (p *Pipeline) Advance(to Status, note string, now time.Time) ([]FiredAction, error) {
	return p.transition(to, note, nil, now)
}

// Finalize records an outcome and moves p into the matching terminal status.
func (p *Pipeline) Finalize(outcome Outcome, note string, now time.Time) ([]FiredAction, error) {
	if _, err := ParseOutcomeKind(string(outcome.Kind)); err != nil {
		return nil, err
	}
	if p.IsTerminal() {
		return nil, &domain.PipelineTerminalError{PipelineID: p.ID, Status: string(p.Status)}
	}
	if outcome.At.IsZero() {
		outcome.At = now
	}
	return p.transition(terminalStatusFor(outcome.Kind, p.Status), note, &outcome, now)
}

func (p *Pipeline) transition(to Status, note string, outcome *Outcome, now time.Time) ([]FiredAction, error) {
	if p.IsTerminal() {
		return nil, &domain.PipelineTerminalError{PipelineID: p.ID, Status: string(p.Status)}
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	from := p.Status
	if !IsTransitionAllowed(from, to) {
		return nil, &domain.TransitionError{PipelineID: p.ID, From: string(from), To: string(to)}
	}

	prevStage := p.CurrentStage
	nextStage := StageFor(to)

	p.Status = to
	p.CurrentStage = nextStage
	p.UpdatedAt = now

	text := strings.TrimSpace(note)
	if text == "" {
		text = fmt.Sprintf("status changed %s → %s", from, to)
	}
	p.Notes = append(p.Notes, Note{At: now, From: from, To: to, Text: text})

	if nextStage != prevStage {
		closing := StageCompleted
		if to == StatusApplicationRejected {
			closing = StageFailed
		}
		p.closeStage(prevStage, closing, now)
		p.startStage(nextStage, now)
	}

	if to.IsTerminal() {
		if outcome == nil {
			outcome = &Outcome{Kind: outcomeForStatus(to), At: now}
		}
		p.Outcome = outcome
		p.closeStage(StageCompletion, StageCompleted, now)
	}

	return p.RunActions(now), nil
}

// ApplyTracking folds an email tracking event into the counters. Terminal
// pipelines are frozen and ignore it.
func (p *Pipeline) ApplyTracking(kind TrackingKind, now time.Time) bool {
	if p.IsTerminal() {
		return false
	}
	switch kind {
	case TrackingOpened:
		p.Tracking.Opens++
	case TrackingClicked:
		p.Tracking.Clicks++
	case TrackingReplied:
		p.Tracking.Replies++
	case TrackingBounced:
		p.Tracking.Bounces++
	case TrackingUnsubscribed:
		p.Tracking.Unsubscribed = true
	default:
		return false
	}
	p.Tracking.LastEventAt = timePtr(now)
	p.UpdatedAt = now
	return true
}

// MarkSent records a successful dispatch of the initial proposal.
func (p *Pipeline) MarkSent(messageID, threadID string, now time.Time) {
	p.Tracking.MessageID = messageID
	p.Tracking.ThreadID = threadID
	p.Tracking.SentAt = timePtr(now)
	p.UpdatedAt = now
}

func (p *Pipeline) addReminder(params ActionParams, now time.Time) Reminder {
	r := Reminder{
		ID:       uuid.NewString(),
		Type:     params.ReminderType,
		DueAt:    now.Add(params.ReminderOffset),
		Priority: params.Priority,
	}
	if r.Priority == "" {
		r.Priority = "medium"
	}
	p.Reminders = append(p.Reminders, r)
	return r
}

func (p *Pipeline) CompleteReminder(id string, now time.Time) error {
	for i := range p.Reminders {
		if p.Reminders[i].ID != id {
			continue
		}
		p.Reminders[i].Completed = true
		p.UpdatedAt = now
		return nil
	}
	return domain.ErrNotFound
}

// SurfaceDueReminders returns reminders that are due, open and not yet
// surfaced, stamping them so each is surfaced once.
func (p *Pipeline) SurfaceDueReminders(now time.Time) []Reminder {
	out := make([]Reminder, 0)
	for i := range p.Reminders {
		r := &p.Reminders[i]
		if r.Completed || r.SurfacedAt != nil || now.Before(r.DueAt) {
			continue
		}
		r.SurfacedAt = timePtr(now)
		out = append(out, *r)
	}
	return out
}
