package handler

import (
	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/delivery/http/middleware"
	"outreach-engine/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// TrackingHandler receives open, click, reply, bounce and unsubscribe
// notifications keyed by the tracking id stamped on outgoing mail.
type TrackingHandler struct {
	orch Orchestrator
}

func NewTrackingHandler(orch Orchestrator) *TrackingHandler {
	return &TrackingHandler{orch: orch}
}

func (h *TrackingHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Post("/tracking/:trackingID", h.Record)
}

func (h *TrackingHandler) Record(c fiber.Ctx) error {
	var req dto.TrackingEventRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	p, err := h.orch.OnTrackingEvent(c.Context(), c.Params("trackingID"), req.Kind)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{
		"pipeline_id": p.ID,
		"status":      p.Status,
		"tracking":    p.Tracking,
	})
}
