package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/domain/proposal"
	"outreach-engine/internal/events"
)

var monday = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *fakeGenerator) GenerateProposal(ctx context.Context, o opportunity.Opportunity, p opportunity.Profile) (proposal.Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return proposal.Proposal{}, g.err
	}
	return proposal.Proposal{
		Subject:      "Hello " + o.Organization,
		Content:      "I would like to help with " + o.Title,
		CallToAction: "Talk soon?",
	}, nil
}

func (g *fakeGenerator) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type fakeTransport struct {
	mu   sync.Mutex
	err  error
	sent []Message
	// onSend runs before the message is recorded, outside the lock.
	onSend func(Message)
}

func (t *fakeTransport) Send(ctx context.Context, msg Message) (SendResult, error) {
	t.mu.Lock()
	hook := t.onSend
	t.mu.Unlock()
	if hook != nil {
		hook(msg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return SendResult{}, t.err
	}
	t.sent = append(t.sent, msg)
	n := len(t.sent)
	return SendResult{MessageID: fmt.Sprintf("msg-%d", n), ThreadID: "thread-" + msg.TrackingID}, nil
}

func (t *fakeTransport) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) HealthCheck(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

type memRepo struct {
	mu    sync.Mutex
	saved map[string]*pipeline.Pipeline
	saves int
}

func newMemRepo() *memRepo {
	return &memRepo{saved: map[string]*pipeline.Pipeline{}}
}

func (r *memRepo) Save(ctx context.Context, p *pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[p.ID] = p.Clone()
	r.saves++
	return nil
}

func (r *memRepo) LoadAll(ctx context.Context) ([]*pipeline.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*pipeline.Pipeline, 0, len(r.saved))
	for _, p := range r.saved {
		out = append(out, p.Clone())
	}
	return out, nil
}

type memCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memCounters) LoadDailyCount(ctx context.Context, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day], nil
}

func (m *memCounters) SaveDailyCount(ctx context.Context, day string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[day] = count
	return nil
}

var errBoom = errors.New("boom")

type harness struct {
	engine    *Engine
	clock     *testClock
	generator *fakeGenerator
	transport *fakeTransport
	repo      *memRepo
	counters  *memCounters
	sub       events.Subscription
}

func newHarness(t *testing.T, settingsYAML string) *harness {
	t.Helper()
	s, err := config.ParseSettings([]byte(settingsYAML))
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	h := &harness{
		clock:     &testClock{now: monday},
		generator: &fakeGenerator{},
		transport: &fakeTransport{},
		repo:      newMemRepo(),
		counters:  &memCounters{},
	}
	quiet := log.New(io.Discard, "", 0)
	bus := events.NewBus(events.WithLogger(quiet), events.WithSubscriberCapacity(1024), events.WithClock(h.clock.Now))
	h.engine = New(Deps{
		Generator:  h.generator,
		Transport:  h.transport,
		Repository: h.repo,
		Counters:   h.counters,
		Bus:        bus,
		Settings:   config.NewSettingsStore(s),
		Logger:     quiet,
	}, WithClock(h.clock.Now))
	h.sub = bus.Subscribe()
	t.Cleanup(h.sub.Close)
	return h
}

// drain returns the types of every event published since the last call.
func (h *harness) drain() []events.Event {
	out := make([]events.Event, 0)
	for {
		select {
		case e := <-h.sub.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func hasEvent(evs []events.Event, typ events.Type) bool {
	for _, e := range evs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func goOpportunity(id string) opportunity.Opportunity {
	return opportunity.Opportunity{
		ID:           id,
		Title:        "Backend Engineer",
		Organization: "Acme",
		Industry:     "fintech",
		Description:  "Build payment services in Go.",
		Skills:       []string{"Go"},
		Urgency:      opportunity.UrgencyMedium,
		PostedAt:     monday.Add(-24 * time.Hour),
		Contact:      "jobs@acme.example",
	}
}

func goProfile() opportunity.Profile {
	return opportunity.Profile{
		ID:              "profile-1",
		Name:            "Sam",
		Email:           "sam@example.com",
		Skills:          []string{"Go", "Docker"},
		Industries:      []string{"fintech"},
		Experience:      opportunity.TierMid,
		YearsExperience: 4,
	}
}
