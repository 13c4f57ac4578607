package ws

import "outreach-engine/internal/events"

const (
	KindEvent    = "event"
	KindSnapshot = "snapshot"
	KindAck      = "ack"
)

// Envelope is every server-to-client frame.
type Envelope struct {
	Kind   string         `json:"kind"`
	Event  *events.Event  `json:"event,omitempty"`
	Events []events.Event `json:"events,omitempty"`
	Marked int            `json:"marked,omitempty"`
}

// command is a client-to-server frame. The only command is mark_read.
type command struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}
