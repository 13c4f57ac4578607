package handler

import (
	"time"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/delivery/http/middleware"
	"outreach-engine/internal/domain/pipeline"
	"outreach-engine/internal/engine"
	"outreach-engine/internal/pkg/response"
	"outreach-engine/internal/queue"

	"github.com/gofiber/fiber/v3"
)

type PipelineHandler struct {
	orch Orchestrator
}

func NewPipelineHandler(orch Orchestrator) *PipelineHandler {
	return &PipelineHandler{orch: orch}
}

func (h *PipelineHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/pipelines")
	grp.Get("/", h.List)
	grp.Get("/:id", h.Get)
	grp.Get("/:id/follow-ups", h.FollowUps)
	grp.Post("/:id/status", h.Advance)
	grp.Post("/:id/finalize", h.Finalize)
	grp.Post("/:id/retry", h.Retry)
	grp.Post("/:id/reminders/:reminderID/complete", h.CompleteReminder)
}

func (h *PipelineHandler) List(c fiber.Ctx) error {
	f := engine.ListFilter{OpportunityID: c.Query("opportunity_id")}
	if s := c.Query("status"); s != "" {
		status, err := pipeline.ParseStatus(s)
		if err != nil {
			return err
		}
		f.Status = status
	}

	items := h.orch.Pipelines(f)
	res := make([]dto.PipelineSummary, 0, len(items))
	for _, p := range items {
		res = append(res, dto.NewPipelineSummary(p))
	}
	return response.List(c, res)
}

func (h *PipelineHandler) Get(c fiber.Ctx) error {
	p, err := h.orch.Pipeline(c.Params("id"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}

func (h *PipelineHandler) FollowUps(c fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.orch.Pipeline(id); err != nil {
		return err
	}
	return response.List(c, h.orch.FollowUps(id))
}

func (h *PipelineHandler) Advance(c fiber.Ctx) error {
	var req dto.AdvancePipelineRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	to, err := pipeline.ParseStatus(req.Status)
	if err != nil {
		return err
	}

	p, err := h.orch.Advance(c.Context(), c.Params("id"), to, req.Note)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}

func (h *PipelineHandler) Finalize(c fiber.Ctx) error {
	var req dto.FinalizePipelineRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	kind, err := pipeline.ParseOutcomeKind(req.Outcome)
	if err != nil {
		return err
	}

	outcome := pipeline.Outcome{
		Kind:      kind,
		At:        time.Now().UTC(),
		Feedback:  req.Feedback,
		Salary:    req.Salary,
		StartDate: req.StartDate,
	}
	p, err := h.orch.Finalize(c.Context(), c.Params("id"), outcome, req.Note)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}

// Retry puts a pipeline whose dispatch failed back on the queue.
func (h *PipelineHandler) Retry(c fiber.Ctx) error {
	var req dto.RetryPipelineRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
		}
	}
	priority := queue.Priority(0)
	if req.Priority != "" {
		p, err := queue.ParsePriority(req.Priority)
		if err != nil {
			return err
		}
		priority = p
	}

	id := c.Params("id")
	if err := h.orch.RetryPipeline(c.Context(), id, priority); err != nil {
		return err
	}
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, fiber.Map{"pipeline_id": id})
}

func (h *PipelineHandler) CompleteReminder(c fiber.Ctx) error {
	p, err := h.orch.CompleteReminder(c.Context(), c.Params("id"), c.Params("reminderID"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}
