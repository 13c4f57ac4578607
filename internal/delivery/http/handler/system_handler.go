package handler

import (
	"log"
	"strconv"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/delivery/http/middleware"
	"outreach-engine/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

const defaultEventLimit = 50

// SystemHandler exposes health, metrics, the unread event feed and the
// operator controls.
type SystemHandler struct {
	orch Orchestrator
	feed EventFeed
	log  *log.Logger
}

func NewSystemHandler(orch Orchestrator, feed EventFeed, logger *log.Logger) *SystemHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &SystemHandler{orch: orch, feed: feed, log: logger}
}

func (h *SystemHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/status", h.Status)
	r.Get("/metrics", h.Metrics)
	r.Get("/events", h.Events)
	r.Post("/events/read", h.MarkRead)
	r.Post("/settings/reload", h.ReloadSettings)
	r.Post("/follow-ups/run", h.RunFollowUps)
	r.Post("/sweep/run", h.RunSweep)
}

// Status runs a fresh health check of every collaborator.
func (h *SystemHandler) Status(c fiber.Ctx) error {
	st := h.orch.HealthCheck(c.Context())
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{
		"healthy":  st.Healthy(),
		"running":  h.orch.Running(),
		"services": st.Services,
	})
}

func (h *SystemHandler) Metrics(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, h.orch.Metrics())
}

func (h *SystemHandler) Events(c fiber.Ctx) error {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return middleware.NewAppError(fiber.StatusBadRequest, "limit must be a non-negative integer", nil, err)
		}
		limit = n
	}
	return response.List(c, h.feed.Recent(limit))
}

func (h *SystemHandler) MarkRead(c fiber.Ctx) error {
	var req dto.MarkEventsReadRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	if len(req.IDs) == 0 {
		return middleware.NewAppError(fiber.StatusBadRequest, "ids is required", fiber.Map{"field": "ids"}, nil)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.MarkEventsReadResponse{Marked: h.feed.MarkRead(req.IDs...)})
}

func (h *SystemHandler) ReloadSettings(c fiber.Ctx) error {
	s, err := h.orch.ReloadSettings()
	if err != nil {
		h.log.Printf("component=http action=settings_reload status=error err=%v", err)
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, err.Error(), nil, err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{
		"minimum_match_score":    s.MinimumMatchScore,
		"max_daily_applications": s.MaxDailyApplications,
		"excluded_organizations": s.ExcludedOrganizations,
		"priority_industries":    s.PriorityIndustries,
	})
}

func (h *SystemHandler) RunFollowUps(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, h.orch.RunFollowUps(c.Context()))
}

func (h *SystemHandler) RunSweep(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, h.orch.Sweep(c.Context()))
}
