package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outreach-engine/internal/events"

	"github.com/gorilla/websocket"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestHubBroadcastAndSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(quietLogger())
	go hub.Run(ctx)

	fast := &Client{hub: hub, send: make(chan []byte, 4)}
	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.Register(fast)
	hub.Register(slow)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast([]byte("hello"))
	select {
	case msg := <-fast.send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("fast client got nothing")
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	if _, ok := <-slow.send; ok {
		t.Fatalf("slow client channel should be closed")
	}

	cancel()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestClientHandleMarkRead(t *testing.T) {
	bus := events.NewBus(events.WithLogger(quietLogger()))
	ev := bus.Publish(events.New(events.SystemWarning{Component: "test", Message: "x"}, time.Now()))
	c := &Client{marker: bus}

	reply, ok := c.handle([]byte(`{"type":"mark_read","ids":["` + ev.ID + `"]}`))
	if !ok || !strings.Contains(string(reply), `"marked":1`) {
		t.Fatalf("expected ack for one event, got %s", reply)
	}
	if _, ok := c.handle([]byte(`{"type":"subscribe"}`)); ok {
		t.Fatalf("unknown commands must be ignored")
	}
	if _, ok := c.handle([]byte(`not json`)); ok {
		t.Fatalf("garbage must be ignored")
	}
}

func TestEventStreamOverWebsocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(events.WithLogger(quietLogger()))
	earlier := bus.Publish(events.New(events.SystemWarning{Component: "test", Message: "before connect"}, time.Now()))
	hub := NewHub(quietLogger())
	go hub.Run(ctx)
	go hub.Forward(ctx, bus)
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 })

	srv := httptest.NewServer(NewHandler(hub, bus, quietLogger()))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	snap := readEnvelope(t, conn)
	if snap.Kind != KindSnapshot || len(snap.Events) != 1 || snap.Events[0].ID != earlier.ID {
		t.Fatalf("expected snapshot with the earlier event, got %+v", snap)
	}

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	live := bus.Publish(events.New(events.SystemWarning{Component: "test", Message: "live"}, time.Now()))
	got := readEnvelope(t, conn)
	if got.Kind != KindEvent || got.Event == nil || got.Event.ID != live.ID {
		t.Fatalf("expected live event, got %+v", got)
	}

	if err := conn.WriteJSON(map[string]any{"type": "mark_read", "ids": []string{earlier.ID, live.ID}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ack := readEnvelope(t, conn)
	if ack.Kind != KindAck || ack.Marked != 2 {
		t.Fatalf("expected ack for 2, got %+v", ack)
	}
	if n := len(bus.Recent(0)); n != 0 {
		t.Fatalf("expected no unread events, got %d", n)
	}
}

// envelopeIn mirrors Envelope with a decodable event payload.
type envelopeIn struct {
	Kind  string `json:"kind"`
	Event *struct {
		ID string `json:"id"`
	} `json:"event"`
	Events []struct {
		ID string `json:"id"`
	} `json:"events"`
	Marked int `json:"marked"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelopeIn {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelopeIn
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
