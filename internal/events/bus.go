// Package events fans lifecycle and health events out to subscribers.
//
// Delivery is best effort: a subscriber whose buffer is full misses the event
// and the drop is logged. A new subscriber gets the bounded list of recent
// unread events once at subscribe time and nothing older.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSubscriberCapacity = 256
	defaultRecentLimit        = 100
)

type Option func(*Bus)

func WithLogger(logger *log.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithSubscriberCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.channelSize = n
		}
	}
}

func WithRecentLimit(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.recentLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	recent      []Event
	status      *statusBoard
	channelSize int
	recentLimit int
	dropped     uint64
	logger      *log.Logger
	now         func() time.Time
}

type Subscription struct {
	Events <-chan Event
	// Recent holds the unread events that were buffered when the
	// subscription was created, oldest first.
	Recent []Event
	cancel func()
}

func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: map[*subscriber]struct{}{},
		recent:      make([]Event, 0, defaultRecentLimit),
		status:      newStatusBoard(),
		channelSize: defaultSubscriberCapacity,
		recentLimit: defaultRecentLimit,
		logger:      log.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Bus) Subscribe() Subscription {
	sub := &subscriber{ch: make(chan Event, b.channelSize)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	recent := make([]Event, len(b.recent))
	copy(recent, b.recent)
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Printf("component=events action=subscribe subscribers=%d recent=%d", total, len(recent))
	return Subscription{
		Events: sub.ch,
		Recent: recent,
		cancel: func() { b.unsubscribe(sub) },
	}
}

func (b *Bus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	sub.close()
}

// Publish stamps e with an id and timestamp when missing and delivers it to
// every current subscriber without blocking.
func (b *Bus) Publish(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	if e.Type == "" && e.Payload != nil {
		e.Type = e.Payload.eventType()
	}
	if h, ok := e.Payload.(HealthCheck); ok {
		b.status.apply(h, e.Timestamp)
	}

	b.mu.Lock()
	if len(b.recent) >= b.recentLimit {
		b.recent = append(b.recent[:0], b.recent[1:]...)
	}
	b.recent = append(b.recent, e)
	subs := make([]*subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if !s.deliver(e) {
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
			b.logger.Printf("component=events action=drop type=%s id=%s reason=subscriber_full", e.Type, e.ID)
		}
	}
	if e.IsProblem() {
		b.logger.Printf("component=events action=publish type=%s pipeline_id=%s payload=%+v", e.Type, e.PipelineID, e.Payload)
	}
	return e
}

// MarkRead removes the given events from the recent-unread list and returns
// how many were found.
func (b *Bus) MarkRead(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.recent[:0]
	n := 0
	for _, e := range b.recent {
		if _, ok := want[e.ID]; ok {
			n++
			continue
		}
		kept = append(kept, e)
	}
	b.recent = kept
	return n
}

// Recent returns up to limit unread events, newest last. limit <= 0 returns
// all of them.
func (b *Bus) Recent(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if limit > 0 && len(b.recent) > limit {
		start = len(b.recent) - limit
	}
	out := make([]Event, len(b.recent)-start)
	copy(out, b.recent[start:])
	return out
}

func (b *Bus) Status() SystemStatus {
	return b.status.snapshot()
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) deliver(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
