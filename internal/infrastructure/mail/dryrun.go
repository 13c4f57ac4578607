package mail

import (
	"context"
	"log"
	"sync"

	"outreach-engine/internal/engine"

	"github.com/google/uuid"
)

// DryRun logs outgoing mail instead of sending it. It keeps the last sent
// messages so an operator can inspect them.
type DryRun struct {
	logger *log.Logger

	mu   sync.Mutex
	sent []engine.Message
}

func NewDryRun(logger *log.Logger) *DryRun {
	if logger == nil {
		logger = log.Default()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Send(ctx context.Context, msg engine.Message) (engine.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.SendResult{}, err
	}
	res := engine.SendResult{MessageID: uuid.NewString(), ThreadID: msg.ThreadID}
	if res.ThreadID == "" {
		res.ThreadID = uuid.NewString()
	}

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	if len(d.sent) > 100 {
		d.sent = d.sent[1:]
	}
	d.mu.Unlock()

	d.logger.Printf("component=mail mode=dry_run recipient=%s subject=%q tracking_id=%s message_id=%s", msg.Recipient, msg.Subject, msg.TrackingID, res.MessageID)
	return res, nil
}

func (d *DryRun) Sent() []engine.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]engine.Message, len(d.sent))
	copy(out, d.sent)
	return out
}
