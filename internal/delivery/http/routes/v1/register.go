package v1

import (
	"log"

	"outreach-engine/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func Register(r fiber.Router, orch handler.Orchestrator, feed handler.EventFeed, logger *log.Logger) {
	if r == nil || orch == nil {
		return
	}

	handler.NewOpportunityHandler(orch, logger).RegisterRoutes(r)
	handler.NewPipelineHandler(orch).RegisterRoutes(r)
	handler.NewTrackingHandler(orch).RegisterRoutes(r)
	handler.NewSystemHandler(orch, feed, logger).RegisterRoutes(r)
}
