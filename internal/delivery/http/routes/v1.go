package routes

import (
	"log"

	"outreach-engine/internal/delivery/http/handler"
	v1 "outreach-engine/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

func RegisterV1(r fiber.Router, orch handler.Orchestrator, feed handler.EventFeed, logger *log.Logger) {
	if r == nil {
		return
	}

	v1.Register(r, orch, feed, logger)
}
