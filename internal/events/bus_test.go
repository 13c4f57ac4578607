package events

import (
	"io"
	"log"
	"testing"
	"time"
)

var t0 = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func quietBus(opts ...Option) *Bus {
	base := []Option{WithLogger(log.New(io.Discard, "", 0)), WithClock(func() time.Time { return t0 })}
	return NewBus(append(base, opts...)...)
}

func TestNew_DerivesTypeFromPayload(t *testing.T) {
	e := New(EmailSent{Recipient: "a@b.c"}, t0).For("p1", "o1")
	if e.Type != TypeEmailSent || e.ID == "" || e.PipelineID != "p1" || e.OpportunityID != "o1" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.IsProblem() {
		t.Fatalf("email_sent is not a problem event")
	}
	if !New(SystemWarning{Component: "x"}, t0).IsProblem() {
		t.Fatalf("warning should be a problem event")
	}
}

func TestBus_FanOutToCurrentSubscribers(t *testing.T) {
	b := quietBus()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	pub := b.Publish(Event{Payload: JobDiscovered{Title: "Go dev"}})
	if pub.ID == "" || pub.Type != TypeJobDiscovered || !pub.Timestamp.Equal(t0) {
		t.Fatalf("publish should stamp the event, got %+v", pub)
	}
	for i, s := range []Subscription{s1, s2} {
		select {
		case got := <-s.Events:
			if got.ID != pub.ID {
				t.Fatalf("subscriber %d got %s, want %s", i, got.ID, pub.ID)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBus_LateSubscriberOnlySeesRecentSnapshot(t *testing.T) {
	b := quietBus(WithRecentLimit(2))
	first := b.Publish(New(JobDiscovered{Title: "one"}, t0))
	b.Publish(New(JobDiscovered{Title: "two"}, t0))
	b.Publish(New(JobDiscovered{Title: "three"}, t0))

	sub := b.Subscribe()
	defer sub.Close()
	if len(sub.Recent) != 2 {
		t.Fatalf("expected 2 recent events, got %d", len(sub.Recent))
	}
	for _, e := range sub.Recent {
		if e.ID == first.ID {
			t.Fatalf("evicted event must not be replayed")
		}
	}
	select {
	case e := <-sub.Events:
		t.Fatalf("no replay on the channel expected, got %s", e.Type)
	default:
	}
}

func TestBus_MarkReadShrinksRecent(t *testing.T) {
	b := quietBus()
	e1 := b.Publish(New(EmailSent{}, t0))
	b.Publish(New(EmailSent{}, t0))

	if n := b.MarkRead(e1.ID, "unknown"); n != 1 {
		t.Fatalf("expected 1 marked, got %d", n)
	}
	recent := b.Recent(0)
	if len(recent) != 1 || recent[0].ID == e1.ID {
		t.Fatalf("unexpected recent list %+v", recent)
	}
	if len(b.Subscribe().Recent) != 1 {
		t.Fatalf("read events must not reach new subscribers")
	}
}

func TestBus_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	b := quietBus(WithSubscriberCapacity(1))
	slow := b.Subscribe()
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(New(TrackingReceived{Kind: "opened"}, t0))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if b.Dropped() != 4 {
		t.Fatalf("expected 4 drops, got %d", b.Dropped())
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	b := quietBus()
	sub := b.Subscribe()
	sub.Close()
	sub.Close()
	b.Publish(New(EmailSent{}, t0))
	if _, ok := <-sub.Events; ok {
		t.Fatalf("closed subscription should have a closed channel")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestBus_HealthEventsUpdateStatus(t *testing.T) {
	b := quietBus()
	st := b.Status()
	if len(st.Services) != 4 || st.Services[ServiceGenerator].State != StateStopped {
		t.Fatalf("unexpected initial status %+v", st)
	}

	b.Publish(New(HealthCheck{Service: ServiceGenerator, State: StateRunning}, t0))
	b.Publish(New(HealthCheck{Service: ServiceEmail, State: StateError, Detail: "smtp down"}, t0))
	b.Publish(New(HealthCheck{Service: ServiceEmail, State: "bogus"}, t0))

	st = b.Status()
	if st.Services[ServiceGenerator].State != StateRunning {
		t.Fatalf("generator should be running")
	}
	if st.Services[ServiceEmail].State != StateError || st.Services[ServiceEmail].Detail != "smtp down" {
		t.Fatalf("email should be in error, got %+v", st.Services[ServiceEmail])
	}
	if st.Healthy() {
		t.Fatalf("status with an error service is not healthy")
	}
}
