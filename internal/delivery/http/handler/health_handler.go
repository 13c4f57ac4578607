package handler

import (
	"outreach-engine/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// HealthHandler answers liveness probes from the last known status without
// probing collaborators again.
type HealthHandler struct {
	feed EventFeed
}

func NewHealthHandler(feed EventFeed) *HealthHandler {
	return &HealthHandler{feed: feed}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	if h.feed == nil {
		return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{"healthy": true})
	}
	st := h.feed.Status()
	if !st.Healthy() {
		return response.Error(c, fiber.StatusServiceUnavailable, response.MessageServiceUnavailable, st)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{"healthy": true, "services": st.Services})
}
