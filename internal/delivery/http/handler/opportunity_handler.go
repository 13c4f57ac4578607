package handler

import (
	"log"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/delivery/http/middleware"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/pkg/response"
	"outreach-engine/internal/queue"

	"github.com/gofiber/fiber/v3"
)

type OpportunityHandler struct {
	orch Orchestrator
	log  *log.Logger
}

func NewOpportunityHandler(orch Orchestrator, logger *log.Logger) *OpportunityHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &OpportunityHandler{orch: orch, log: logger}
}

func (h *OpportunityHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Post("/opportunities", h.Submit)
	r.Post("/processor/run", h.RunProcessor)
}

// Submit scores and enqueues one opportunity. A rejection is a normal
// outcome and is answered with 200 and accepted=false; 202 means queued.
func (h *OpportunityHandler) Submit(c fiber.Ctx) error {
	var req dto.SubmitOpportunityRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	priority := queue.Priority(0)
	if req.Priority != "" {
		p, err := queue.ParsePriority(req.Priority)
		if err != nil {
			return err
		}
		priority = p
	}
	var profile opportunity.Profile
	if req.Profile != nil {
		profile = *req.Profile
	}

	res, err := h.orch.SubmitOpportunity(c.Context(), req.Opportunity, profile, priority)
	if err != nil {
		return err
	}
	if !res.Accepted {
		h.log.Printf("component=http action=submit opportunity_id=%s status=rejected code=%s", req.Opportunity.ID, res.Code)
		return response.Success(c, fiber.StatusOK, response.MessageOK, res)
	}
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, res)
}

// RunProcessor dispatches the next queued opportunity now instead of
// waiting for the processor tick.
func (h *OpportunityHandler) RunProcessor(c fiber.Ctx) error {
	res, err := h.orch.ProcessNext(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, res)
}
