// Package engine drives opportunities from submission to outcome.
//
// All mutable state lives in State and is owned by one Engine. Pipelines are
// changed through mutate, which works on a clone under the pipeline's lock
// and swaps it in only when the whole step succeeded, so a failed or
// abandoned step never leaves a half-advanced pipeline behind. Generator and
// transport calls run outside that lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/events"
	"outreach-engine/internal/followup"
	"outreach-engine/internal/queue"

	"github.com/robfig/cron/v3"
)

// State is everything the engine mutates. Two engines never share one.
type State struct {
	Queue     *queue.Queue
	Counter   *queue.DailyCounter
	FollowUps *followup.Scheduler
	pipelines *registry
}

func NewState(dailyLimit int, now time.Time) *State {
	counter := queue.NewDailyCounter(dailyLimit, now)
	return &State{
		Queue:     queue.New(counter),
		Counter:   counter,
		FollowUps: followup.NewScheduler(),
		pipelines: newRegistry(),
	}
}

type Deps struct {
	Generator  ProposalGenerator
	Transport  Transport
	Repository PipelineRepository
	Counters   CounterStore
	Bus        *events.Bus
	Settings   *config.SettingsStore
	Logger     *log.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithState(s *State) Option {
	return func(e *Engine) {
		if s != nil {
			e.state = s
		}
	}
}

type Engine struct {
	generator ProposalGenerator
	transport Transport
	repo      PipelineRepository
	counters  CounterStore
	bus       *events.Bus
	settings  *config.SettingsStore
	log       *log.Logger
	now       func() time.Time

	state *State

	// processMu serializes ProcessNext so the counter check at Pop and the
	// increment after a send cannot interleave with another dispatch.
	processMu sync.Mutex

	cronMu  sync.Mutex
	cron    *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	running atomic.Bool

	metricsMu   sync.RWMutex
	lastMetrics domain.PipelineMetrics
}

func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		generator: deps.Generator,
		transport: deps.Transport,
		repo:      deps.Repository,
		counters:  deps.Counters,
		bus:       deps.Bus,
		settings:  deps.Settings,
		log:       deps.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.log == nil {
		e.log = log.Default()
	}
	if e.bus == nil {
		e.bus = events.NewBus(events.WithLogger(e.log))
	}
	if e.settings == nil {
		e.settings = config.NewSettingsStore(config.DefaultSettings())
	}
	if e.state == nil {
		e.state = NewState(e.settings.Current().MaxDailyApplications, e.now())
	}
	return e
}

func (e *Engine) Bus() *events.Bus {
	return e.bus
}

func (e *Engine) Settings() config.Settings {
	return e.settings.Current()
}

// ReloadSettings re-reads the operator settings file. The daily cap takes
// effect immediately; everything else is read on the next decision.
func (e *Engine) ReloadSettings() (config.Settings, error) {
	s, err := e.settings.Reload()
	if err != nil {
		e.publish(events.New(events.SystemWarning{Component: "settings", Message: err.Error()}, e.now()))
		return config.Settings{}, err
	}
	e.state.Counter.SetLimit(s.MaxDailyApplications)
	e.log.Printf("component=engine action=settings_reload status=ok min_score=%d daily_cap=%d", s.MinimumMatchScore, s.MaxDailyApplications)
	return s, nil
}

func (e *Engine) reloadSettingsIfChanged() {
	changed, err := e.settings.ReloadIfChanged()
	if err != nil {
		e.log.Printf("component=engine action=settings_reload status=error err=%v", err)
		e.publish(events.New(events.SystemWarning{Component: "settings", Message: err.Error()}, e.now()))
		return
	}
	if changed {
		s := e.settings.Current()
		e.state.Counter.SetLimit(s.MaxDailyApplications)
		e.log.Printf("component=engine action=settings_reload status=changed path=%s", e.settings.Path())
	}
}

// Restore loads persisted pipelines and the day's dispatch count. It must
// run before Start.
func (e *Engine) Restore(ctx context.Context) error {
	now := e.now()
	if e.counters != nil {
		day := queue.DayKey(now)
		n, err := e.counters.LoadDailyCount(ctx, day)
		if err != nil {
			e.log.Printf("component=engine action=restore_counter status=error err=%v", err)
		} else {
			e.state.Counter.Restore(day, n)
		}
	}
	if e.repo == nil {
		return nil
	}
	all, err := e.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("restore pipelines: %w", err)
	}
	offsets := e.settings.Current().FollowUpOffsets
	followUps := 0
	for _, p := range all {
		e.state.pipelines.add(p)
		followUps += e.restoreFollowUps(p, offsets)
	}
	e.log.Printf("component=engine action=restore status=ok pipelines=%d follow_ups=%d", len(all), followUps)
	return nil
}

// restoreFollowUps re-plans the follow-ups that were never handled. Every
// sequence up to Tracking.FollowUpsHandled was sent, skipped or failed.
func (e *Engine) restoreFollowUps(p *pipeline.Pipeline, offsets []time.Duration) int {
	if p.IsTerminal() || !p.Status.InOutreach() || p.Tracking.SentAt == nil || p.Tracking.Suppressed() {
		return 0
	}
	conds := followup.ConditionsFor(len(offsets))
	n := 0
	for i := max(p.Tracking.FollowUps, p.Tracking.FollowUpsHandled); i < len(offsets); i++ {
		e.state.FollowUps.Restore(followup.FollowUp{
			ID:         fmt.Sprintf("%s-%d", p.ID, i+1),
			PipelineID: p.ID,
			Sequence:   i + 1,
			Condition:  conds[i],
			DueAt:      p.Tracking.SentAt.Add(offsets[i]),
			Status:     followup.StatusScheduled,
		})
		n++
	}
	return n
}

// Start schedules the periodic ticks. Each tick kind is non-reentrant: a
// tick that is still running when its next slot comes is skipped.
func (e *Engine) Start(ctx context.Context) error {
	e.cronMu.Lock()
	defer e.cronMu.Unlock()
	if e.cron != nil {
		return errors.New("engine already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	iv := e.settings.Current().Intervals

	ticks := []struct {
		name  string
		every time.Duration
		fn    func(context.Context)
	}{
		{"processor", iv.Processor, func(ctx context.Context) {
			if _, err := e.ProcessNext(ctx); err != nil {
				e.log.Printf("component=engine tick=processor status=error err=%v", err)
			}
		}},
		{"follow_up", iv.FollowUp, func(ctx context.Context) { e.RunFollowUps(ctx) }},
		{"sweep", iv.Sweep, func(ctx context.Context) {
			e.reloadSettingsIfChanged()
			e.Sweep(ctx)
		}},
		{"health", iv.Health, func(ctx context.Context) { e.HealthCheck(ctx) }},
		{"metrics", iv.Metrics, func(ctx context.Context) {
			m := e.Metrics()
			e.log.Printf("component=engine tick=metrics total=%d active=%d sent_today=%d/%d queue=%d follow_ups=%d",
				m.Total, m.Active, m.SentToday, m.DailyLimit, m.QueueDepth, m.PendingFollowUps)
		}},
	}
	for _, t := range ticks {
		t := t
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", t.every), func() { t.fn(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s tick: %w", t.name, err)
		}
	}

	e.cron = c
	e.runCtx = runCtx
	e.cancel = cancel
	e.running.Store(true)
	c.Start()
	e.log.Printf("component=engine action=start processor=%s follow_up=%s sweep=%s", iv.Processor, iv.FollowUp, iv.Sweep)

	go e.HealthCheck(runCtx)
	return nil
}

// Every adds an extra periodic job to the engine's scheduler, e.g. an inbox
// watcher. It must be called after Start.
func (e *Engine) Every(name string, every time.Duration, fn func(context.Context) error) error {
	e.cronMu.Lock()
	defer e.cronMu.Unlock()
	if e.cron == nil {
		return errors.New("engine not started")
	}
	ctx := e.runCtx
	_, err := e.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		if err := fn(ctx); err != nil {
			e.log.Printf("component=engine tick=%s status=error err=%v", name, err)
		}
	})
	return err
}

// Stop halts the ticks, cancels in-flight calls and waits for running ticks
// to return or for ctx to expire.
func (e *Engine) Stop(ctx context.Context) error {
	e.cronMu.Lock()
	c, cancel := e.cron, e.cancel
	e.cron, e.runCtx, e.cancel = nil, nil, nil
	e.cronMu.Unlock()
	if c == nil {
		return nil
	}

	e.running.Store(false)
	done := c.Stop()
	cancel()
	e.publish(events.New(events.HealthCheck{Service: events.ServiceAutomationEngine, State: events.StateStopped}, e.now()))

	select {
	case <-done.Done():
		e.log.Printf("component=engine action=stop status=ok")
		return nil
	case <-ctx.Done():
		e.log.Printf("component=engine action=stop status=timeout")
		return ctx.Err()
	}
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) publish(ev events.Event) {
	e.bus.Publish(ev)
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.settings.Current().CallTimeout)
}

// change collects the side effects of one pipeline step. They are applied
// only after the step committed.
type change struct {
	now     time.Time
	touched bool
	events  []events.Event
	fired   []pipeline.FiredAction
	cancel  string
}

func (c *change) emit(p *pipeline.Pipeline, payload events.Payload) {
	c.events = append(c.events, events.New(payload, c.now).For(p.ID, p.OpportunityID))
}

func (c *change) advance(p *pipeline.Pipeline, to pipeline.Status, note string) error {
	from := p.Status
	fired, err := p.Advance(to, note, c.now)
	if err != nil {
		return err
	}
	c.record(p, from, note, fired)
	return nil
}

func (c *change) finalize(p *pipeline.Pipeline, outcome pipeline.Outcome, note string) error {
	from := p.Status
	fired, err := p.Finalize(outcome, note, c.now)
	if err != nil {
		return err
	}
	c.record(p, from, note, fired)
	return nil
}

func (c *change) record(p *pipeline.Pipeline, from pipeline.Status, note string, fired []pipeline.FiredAction) {
	c.touched = true
	c.fired = append(c.fired, fired...)
	c.emit(p, events.StatusChanged{From: string(from), To: string(p.Status), Note: note})
	switch p.Status {
	case pipeline.StatusResponseReceived:
		c.emit(p, events.ResponseReceived{Replies: p.Tracking.Replies})
	case pipeline.StatusInterviewScheduled:
		c.emit(p, events.InterviewScheduled{Note: note})
	case pipeline.StatusOfferReceived:
		c.emit(p, events.OfferReceived{Note: note})
	}
	if p.IsTerminal() {
		c.cancel = "pipeline finished"
	}
}

func (e *Engine) mutate(ctx context.Context, id string, fn func(p *pipeline.Pipeline, c *change) error) (*pipeline.Pipeline, error) {
	ent, ok := e.state.pipelines.get(id)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	return e.mutateEntry(ctx, ent, fn)
}

func (e *Engine) mutateEntry(ctx context.Context, ent *entry, fn func(p *pipeline.Pipeline, c *change) error) (*pipeline.Pipeline, error) {
	c := &change{now: e.now()}

	ent.mu.Lock()
	work := ent.p.Clone()
	if err := fn(work, c); err != nil {
		snap := ent.p.Clone()
		ent.mu.Unlock()
		return snap, err
	}
	if c.touched {
		ent.p = work
		e.persist(ctx, work)
	}
	snap := ent.p.Clone()
	ent.mu.Unlock()

	e.apply(ctx, snap, c)
	return snap, nil
}

func (e *Engine) persist(ctx context.Context, p *pipeline.Pipeline) {
	if e.repo == nil {
		return
	}
	sctx, cancel := e.callContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := e.repo.Save(sctx, p); err != nil {
		e.log.Printf("component=engine action=persist pipeline_id=%s status=error err=%v", p.ID, err)
		e.publish(events.New(events.SystemWarning{Component: "repository", Message: err.Error()}, e.now()).For(p.ID, p.OpportunityID))
	}
}

func (e *Engine) apply(ctx context.Context, snap *pipeline.Pipeline, c *change) {
	for _, ev := range c.events {
		e.publish(ev)
	}
	if c.cancel != "" {
		if n := e.state.FollowUps.CancelPipeline(snap.ID, c.cancel); n > 0 {
			e.log.Printf("component=engine action=cancel_follow_ups pipeline_id=%s count=%d reason=%q", snap.ID, n, c.cancel)
		}
	}
	for _, fa := range c.fired {
		e.runAction(ctx, snap, fa)
	}
}

// IsActive reports whether an opportunity is already being worked on: it is
// queued or in flight, or it has a pipeline that got past proposal dispatch
// or finished. Stalled pipelines do not count so the opportunity can be
// submitted again.
func (e *Engine) IsActive(opportunityID string) bool {
	if e.state.Queue.Contains(opportunityID) {
		return true
	}
	for _, ent := range e.state.pipelines.forOpportunity(opportunityID) {
		ent.mu.Lock()
		st := ent.p.Status
		ent.mu.Unlock()
		if !stalled(st) {
			return true
		}
	}
	return false
}

func (e *Engine) Pipeline(id string) (*pipeline.Pipeline, error) {
	ent, ok := e.state.pipelines.get(id)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.p.Clone(), nil
}

type ListFilter struct {
	Status        pipeline.Status
	OpportunityID string
}

func (e *Engine) Pipelines(f ListFilter) []*pipeline.Pipeline {
	all := e.state.pipelines.snapshot()
	out := all[:0]
	for _, p := range all {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.OpportunityID != "" && p.OpportunityID != f.OpportunityID {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *Engine) FollowUps(pipelineID string) []followup.FollowUp {
	return e.state.FollowUps.ForPipeline(pipelineID)
}

func (e *Engine) defaultProfile() (opportunity.Profile, bool) {
	s := e.settings.Current()
	if s.Profile == nil {
		return opportunity.Profile{}, false
	}
	return *s.Profile, true
}
