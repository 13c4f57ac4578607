package engine

import (
	"context"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/events"
)

type SweepReport struct {
	Actions   int `json:"actions"`
	Reminders int `json:"reminders"`
	Expired   int `json:"expired"`
}

// Sweep evaluates the time-based parts of every open pipeline: actions
// whose trigger became true with the passage of time, reminders that fell
// due and opportunities whose deadline passed before any reply.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	for _, id := range e.state.pipelines.ids() {
		if ctx.Err() != nil {
			break
		}
		_, err := e.mutate(ctx, id, func(p *pipeline.Pipeline, c *change) error {
			if p.IsTerminal() {
				return nil
			}
			if fired := p.RunActions(c.now); len(fired) > 0 {
				c.touched = true
				c.fired = append(c.fired, fired...)
				report.Actions += len(fired)
			}
			for _, r := range p.SurfaceDueReminders(c.now) {
				c.touched = true
				c.emit(p, events.ReminderDue{ReminderID: r.ID, Kind: r.Type, DueAt: r.DueAt, Priority: r.Priority})
				report.Reminders++
			}
			if p.Opportunity.Expired(c.now) && p.Tracking.Replies == 0 && (stalled(p.Status) || p.Status.InOutreach()) {
				if err := c.finalize(p, pipeline.Outcome{Kind: pipeline.OutcomeExpired}, "deadline passed without a reply"); err != nil {
					return err
				}
				report.Expired++
			}
			return nil
		})
		if err != nil {
			e.log.Printf("component=engine tick=sweep pipeline_id=%s status=error err=%v", id, err)
		}
	}
	if report.Actions+report.Reminders+report.Expired > 0 {
		e.log.Printf("component=engine tick=sweep actions=%d reminders=%d expired=%d", report.Actions, report.Reminders, report.Expired)
	}
	return report
}

// HealthCheck probes every collaborator and publishes one health event per
// service; the bus folds them into the shared status record.
func (e *Engine) HealthCheck(ctx context.Context) events.SystemStatus {
	engineState := events.StateStopped
	if e.Running() {
		engineState = events.StateRunning
	}
	e.publishHealth(events.ServiceAutomationEngine, engineState, "")

	probes := []struct {
		service events.Service
		dep     any
	}{
		{events.ServiceGenerator, e.generator},
		{events.ServiceEmail, e.transport},
		{events.ServiceApplicationService, e.repo},
	}
	for _, pr := range probes {
		state, detail := e.probe(ctx, pr.dep)
		e.publishHealth(pr.service, state, detail)
	}
	return e.bus.Status()
}

func (e *Engine) probe(ctx context.Context, dep any) (events.ServiceState, string) {
	if dep == nil {
		return events.StateStopped, "not configured"
	}
	hc, ok := dep.(HealthChecker)
	if !ok {
		return events.StateRunning, ""
	}
	cctx, cancel := e.callContext(ctx)
	defer cancel()
	if err := hc.HealthCheck(cctx); err != nil {
		return events.StateError, err.Error()
	}
	return events.StateRunning, ""
}

func (e *Engine) publishHealth(s events.Service, state events.ServiceState, detail string) {
	e.publish(events.New(events.HealthCheck{Service: s, State: state, Detail: detail}, e.now()))
	if state == events.StateError {
		e.log.Printf("component=engine tick=health service=%s status=error detail=%q", s, detail)
	}
}

// Metrics computes a fresh snapshot and keeps it as the latest one.
func (e *Engine) Metrics() domain.PipelineMetrics {
	now := e.now()
	m := domain.PipelineMetrics{
		ByStatus:    map[string]int{},
		ByOutcome:   map[string]int{},
		GeneratedAt: now,
	}
	for _, p := range e.state.pipelines.snapshot() {
		m.Total++
		m.ByStatus[string(p.Status)]++
		if p.IsTerminal() {
			m.Terminal++
			if p.Outcome != nil {
				m.ByOutcome[string(p.Outcome.Kind)]++
			}
		} else {
			m.Active++
		}
		if p.Tracking.SentAt != nil {
			m.Sent++
			if p.Tracking.Replies > 0 {
				m.Replied++
			}
		}
		for _, r := range p.Reminders {
			if !r.Completed {
				m.OpenReminders++
			}
		}
	}
	if m.Sent > 0 {
		m.ResponseRate = float64(m.Replied) / float64(m.Sent)
	}
	e.state.Counter.ResetIfNewDay(now)
	_, m.SentToday, m.DailyLimit = e.state.Counter.Snapshot()
	m.QueueDepth = e.state.Queue.Len()
	m.InFlight = e.state.Queue.InFlight()
	m.PendingFollowUps = e.state.FollowUps.Pending()

	e.metricsMu.Lock()
	e.lastMetrics = m
	e.metricsMu.Unlock()
	return m
}

func (e *Engine) LastMetrics() domain.PipelineMetrics {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	return e.lastMetrics
}
