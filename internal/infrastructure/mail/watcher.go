package mail

import (
	"context"
	"errors"
	"log"
	netmail "net/mail"
	"strings"
	"sync"
	"time"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"
)

const seenTTL = 7 * 24 * time.Hour

type InboundMessage struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
}

type Inbox interface {
	RecentMessages(ctx context.Context) ([]InboundMessage, error)
}

// TrackingSink is the part of the engine the watcher feeds.
type TrackingSink interface {
	TrackingIDForThread(threadID string) (string, bool)
	OnTrackingEvent(ctx context.Context, trackingID, kind string) (*pipeline.Pipeline, error)
}

// SeenStore remembers processed message ids across restarts.
type SeenStore interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Watcher turns inbox messages in our outreach threads into reply and
// bounce events. Each message is handled once.
type Watcher struct {
	inbox  Inbox
	sink   TrackingSink
	seen   SeenStore
	logger *log.Logger

	now    func() time.Time
	mu     sync.Mutex
	memory map[string]time.Time
}

type WatchReport struct {
	Checked int
	Replies int
	Bounces int
}

func NewWatcher(inbox Inbox, sink TrackingSink, seen SeenStore, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{inbox: inbox, sink: sink, seen: seen, logger: logger, now: time.Now, memory: map[string]time.Time{}}
}

func (w *Watcher) Sync(ctx context.Context) (WatchReport, error) {
	var report WatchReport
	w.forgetOlderThan(w.now().Add(-seenTTL))
	msgs, err := w.inbox.RecentMessages(ctx)
	if err != nil {
		return report, err
	}
	for _, m := range msgs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !w.firstSighting(ctx, m.ID) {
			continue
		}
		report.Checked++

		trackingID, ok := w.sink.TrackingIDForThread(m.ThreadID)
		if !ok {
			continue
		}
		kind := string(pipeline.TrackingReplied)
		if isBounce(m.From) {
			kind = string(pipeline.TrackingBounced)
		}
		if _, err := w.sink.OnTrackingEvent(ctx, trackingID, kind); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			w.logger.Printf("component=mail action=watch message_id=%s tracking_id=%s status=error err=%v", m.ID, trackingID, err)
			continue
		}
		if kind == string(pipeline.TrackingBounced) {
			report.Bounces++
		} else {
			report.Replies++
		}
		w.logger.Printf("component=mail action=watch message_id=%s tracking_id=%s kind=%s", m.ID, trackingID, kind)
	}
	return report, nil
}

// forgetOlderThan drops local sightings past the inbox query window. Those
// messages are no longer listed, and the seen store still covers them.
func (w *Watcher) forgetOlderThan(cutoff time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, at := range w.memory {
		if at.Before(cutoff) {
			delete(w.memory, id)
		}
	}
}

func (w *Watcher) firstSighting(ctx context.Context, id string) bool {
	w.mu.Lock()
	if _, ok := w.memory[id]; ok {
		w.mu.Unlock()
		return false
	}
	w.memory[id] = w.now()
	w.mu.Unlock()

	if w.seen == nil {
		return true
	}
	fresh, err := w.seen.MarkSeen(ctx, "mail:"+id, seenTTL)
	if err != nil {
		w.logger.Printf("component=mail action=mark_seen message_id=%s status=error err=%v", id, err)
		return true
	}
	return fresh
}

func isBounce(from string) bool {
	addr := from
	if parsed, err := netmail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	local, _, _ := strings.Cut(strings.ToLower(addr), "@")
	return local == "mailer-daemon" || local == "postmaster"
}
