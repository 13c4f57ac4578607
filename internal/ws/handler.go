package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"outreach-engine/internal/events"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub    *Hub
	bus    *events.Bus
	logger *log.Logger
}

func NewHandler(hub *Hub, bus *events.Bus, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{hub: hub, bus: bus, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeHTTP upgrades to a websocket, sends the unread events as one
// snapshot frame and then streams live events.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("component=ws action=upgrade status=error err=%v", err)
		return
	}

	client := NewClient(h.hub, conn, h.bus)
	if b, err := json.Marshal(Envelope{Kind: KindSnapshot, Events: h.bus.Recent(0)}); err == nil {
		client.send <- b
	}
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) HandleEvents(c fiber.Ctx) error {
	if h == nil || h.hub == nil || h.bus == nil {
		return fiber.ErrServiceUnavailable
	}
	return adaptor.HTTPHandler(h)(c)
}
