package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"mime"
	"strings"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/engine"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const trackingHeader = "X-Outreach-Tracking-ID"

// Gmail sends outreach through the Gmail API and reads the inbox for the
// reply watcher.
type Gmail struct {
	svc    *gmail.Service
	sender string
	logger *log.Logger
}

func NewGmail(ctx context.Context, cfg config.MailConfig, logger *log.Logger) (*Gmail, error) {
	if logger == nil {
		logger = log.Default()
	}
	client, err := OAuthClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Gmail{svc: svc, sender: cfg.Sender, logger: logger}, nil
}

func (g *Gmail) Send(ctx context.Context, msg engine.Message) (engine.SendResult, error) {
	from := msg.Sender
	if from == "" {
		from = g.sender
	}
	raw := buildRaw(from, msg)
	out := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw)), ThreadId: msg.ThreadID}

	var sent *gmail.Message
	err := retry(ctx, 3, time.Second, func() error {
		var e error
		sent, e = g.svc.Users.Messages.Send("me", out).Context(ctx).Do()
		return e
	})
	if err != nil {
		g.logger.Printf("component=mail action=send recipient=%s tracking_id=%s status=error err=%v", msg.Recipient, msg.TrackingID, err)
		return engine.SendResult{}, err
	}
	g.logger.Printf("component=mail action=send recipient=%s tracking_id=%s message_id=%s status=ok", msg.Recipient, msg.TrackingID, sent.Id)
	return engine.SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func (g *Gmail) HealthCheck(ctx context.Context) error {
	_, err := g.svc.Users.GetProfile("me").Context(ctx).Do()
	return err
}

// RecentMessages lists inbox messages of the last two days that were not
// sent by us, with the headers the watcher needs.
func (g *Gmail) RecentMessages(ctx context.Context) ([]InboundMessage, error) {
	var list *gmail.ListMessagesResponse
	err := retry(ctx, 3, time.Second, func() error {
		var e error
		list, e = g.svc.Users.Messages.List("me").Q("in:inbox -from:me newer_than:2d").MaxResults(50).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, err
	}

	out := make([]InboundMessage, 0, len(list.Messages))
	for _, m := range list.Messages {
		full, err := g.svc.Users.Messages.Get("me", m.Id).Format("metadata").MetadataHeaders("From", "Subject").Context(ctx).Do()
		if err != nil {
			g.logger.Printf("component=mail action=fetch message_id=%s status=error err=%v", m.Id, err)
			continue
		}
		in := InboundMessage{ID: full.Id, ThreadID: full.ThreadId}
		if full.Payload != nil {
			for _, h := range full.Payload.Headers {
				switch h.Name {
				case "From":
					in.From = h.Value
				case "Subject":
					in.Subject = h.Value
				}
			}
		}
		out = append(out, in)
	}
	return out, nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds a value onto one line so it cannot start a new header.
func headerValue(v string) string {
	return strings.TrimSpace(headerBreaks.Replace(v))
}

// buildRaw renders an RFC 5322 message. The subject is RFC 2047 encoded
// when it is not plain ASCII.
func buildRaw(from string, msg engine.Message) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	}
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.Recipient))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", headerValue(msg.Subject)))
	if msg.TrackingID != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", trackingHeader, headerValue(msg.TrackingID))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// retry backs off between attempts and gives up early on client errors.
func retry(ctx context.Context, attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code >= 400 && gErr.Code < 500 && gErr.Code != 429 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
