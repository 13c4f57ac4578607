package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/engine"
)

type fakeInbox struct {
	msgs []InboundMessage
}

func (f *fakeInbox) RecentMessages(ctx context.Context) ([]InboundMessage, error) {
	return f.msgs, nil
}

type fakeSink struct {
	threads map[string]string
	events  []string
}

func (f *fakeSink) TrackingIDForThread(threadID string) (string, bool) {
	id, ok := f.threads[threadID]
	return id, ok
}

func (f *fakeSink) OnTrackingEvent(ctx context.Context, trackingID, kind string) (*pipeline.Pipeline, error) {
	if trackingID == "gone" {
		return nil, fmt.Errorf("tracking id %s: %w", trackingID, domain.ErrNotFound)
	}
	f.events = append(f.events, trackingID+":"+kind)
	return &pipeline.Pipeline{}, nil
}

type fakeSeen struct {
	keys map[string]bool
}

func (f *fakeSeen) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestWatcherSync(t *testing.T) {
	inbox := &fakeInbox{msgs: []InboundMessage{
		{ID: "m1", ThreadID: "t1", From: "Jane <jane@acme.example>"},
		{ID: "m2", ThreadID: "t2", From: "Mail Delivery Subsystem <MAILER-DAEMON@googlemail.com>"},
		{ID: "m3", ThreadID: "unrelated", From: "news@example.com"},
		{ID: "m4", ThreadID: "t3", From: "x@y.example"},
	}}
	sink := &fakeSink{threads: map[string]string{"t1": "track-1", "t2": "track-2", "t3": "gone"}}
	seen := &fakeSeen{keys: map[string]bool{}}
	w := NewWatcher(inbox, sink, seen, quiet())

	report, err := w.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Checked != 4 || report.Replies != 1 || report.Bounces != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []string{"track-1:replied", "track-2:bounced"}
	if strings.Join(sink.events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", sink.events)
	}

	again, _ := w.Sync(context.Background())
	if again.Checked != 0 || len(sink.events) != 2 {
		t.Fatalf("messages must be handled once, got %+v", again)
	}

	restarted := NewWatcher(inbox, sink, seen, quiet())
	if r, _ := restarted.Sync(context.Background()); r.Checked != 0 {
		t.Fatalf("seen store must survive a restart, got %+v", r)
	}
}

func TestWatcherForgetsOldSightings(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	inbox := &fakeInbox{msgs: []InboundMessage{{ID: "m1", ThreadID: "t1", From: "jane@acme.example"}}}
	sink := &fakeSink{threads: map[string]string{"t1": "track-1"}}
	w := NewWatcher(inbox, sink, nil, quiet())
	w.now = func() time.Time { return now }

	if _, err := w.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(w.memory) != 1 {
		t.Fatalf("expected one remembered message, got %d", len(w.memory))
	}

	now = now.Add(2 * 24 * time.Hour)
	if r, _ := w.Sync(context.Background()); r.Checked != 0 {
		t.Fatalf("message still in the window must not be handled twice, got %+v", r)
	}

	inbox.msgs = nil
	now = now.Add(seenTTL)
	w.Sync(context.Background())
	if len(w.memory) != 0 {
		t.Fatalf("old sightings should be dropped, %d left", len(w.memory))
	}
}

func TestIsBounce(t *testing.T) {
	cases := map[string]bool{
		"MAILER-DAEMON@googlemail.com":        true,
		"Postmaster <postmaster@example.com>": true,
		"Jane Recruiter <jane@acme.example>":  false,
		"not an address":                      false,
	}
	for from, want := range cases {
		if got := isBounce(from); got != want {
			t.Errorf("isBounce(%q) = %v, want %v", from, got, want)
		}
	}
}

func TestBuildRaw(t *testing.T) {
	raw := buildRaw("sam@example.com", engine.Message{
		Recipient:  "jobs@acme.example",
		Subject:    "Hello",
		Body:       "Body text",
		TrackingID: "track-1",
	})
	for _, want := range []string{"From: sam@example.com\r\n", "To: jobs@acme.example\r\n", "X-Outreach-Tracking-ID: track-1\r\n", "\r\n\r\nBody text"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("raw message missing %q:\n%s", want, raw)
		}
	}
}

func TestBuildRawHeaders(t *testing.T) {
	t.Run("line breaks in the subject cannot add headers", func(t *testing.T) {
		raw := buildRaw("", engine.Message{
			Recipient: "jobs@acme.example",
			Subject:   "Hello\r\nBcc: leak@evil.example",
			Body:      "Body",
		})
		head, _, _ := strings.Cut(raw, "\r\n\r\n")
		for _, line := range strings.Split(head, "\r\n") {
			if strings.HasPrefix(line, "Bcc:") {
				t.Fatalf("injected header in:\n%s", raw)
			}
		}
		if !strings.Contains(head, "Subject: Hello Bcc: leak@evil.example\r\n") {
			t.Fatalf("subject should be folded onto one line:\n%s", head)
		}
	})

	t.Run("non-ASCII subject is encoded", func(t *testing.T) {
		raw := buildRaw("", engine.Message{Recipient: "jobs@acme.example", Subject: "Candidature – Développeur Go"})
		if !strings.Contains(raw, "Subject: =?UTF-8?q?") {
			t.Fatalf("expected an RFC 2047 encoded subject:\n%s", raw)
		}
		if strings.Contains(raw, "é") {
			t.Fatalf("raw header must be ASCII:\n%s", raw)
		}
	})

	t.Run("ASCII subject is untouched", func(t *testing.T) {
		raw := buildRaw("", engine.Message{Recipient: "jobs@acme.example", Subject: "Re: Backend Engineer"})
		if !strings.Contains(raw, "Subject: Re: Backend Engineer\r\n") {
			t.Fatalf("unexpected subject:\n%s", raw)
		}
	})
}

func TestDryRun(t *testing.T) {
	d := NewDryRun(quiet())
	res, err := d.Send(context.Background(), engine.Message{Recipient: "a@b.example", ThreadID: "thread-9"})
	if err != nil || res.MessageID == "" || res.ThreadID != "thread-9" {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	fresh, _ := d.Send(context.Background(), engine.Message{Recipient: "a@b.example"})
	if fresh.ThreadID == "" {
		t.Fatalf("a new conversation needs a thread id")
	}
	if len(d.Sent()) != 2 {
		t.Fatalf("expected 2 recorded messages")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Send(ctx, engine.Message{}); err == nil {
		t.Fatalf("cancelled context must fail the send")
	}
}
