package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Marker acknowledges events on behalf of a dashboard.
type Marker interface {
	MarkRead(ids ...string) int
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	marker Marker
}

func NewClient(hub *Hub, conn *websocket.Conn, marker Marker) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, 256), marker: marker}
}

// ReadPump handles commands from the dashboard until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Printf("component=ws action=read status=error err=%v", err)
			}
			return
		}
		if reply, ok := c.handle(raw); ok {
			c.enqueue(reply)
		}
	}
}

func (c *Client) handle(raw []byte) ([]byte, bool) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type != "mark_read" || c.marker == nil {
		return nil, false
	}
	b, err := json.Marshal(Envelope{Kind: KindAck, Marked: c.marker.MarkRead(cmd.IDs...)})
	if err != nil {
		return nil, false
	}
	return b, true
}

// enqueue never blocks the read loop; a full buffer drops the frame.
func (c *Client) enqueue(b []byte) {
	defer func() { _ = recover() }()
	select {
	case c.send <- b:
	default:
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
