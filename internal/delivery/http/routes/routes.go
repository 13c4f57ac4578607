package routes

import (
	"log"

	"outreach-engine/internal/delivery/http/handler"
	"outreach-engine/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	orch   handler.Orchestrator
	feed   handler.EventFeed
	ws     *ws.Handler
	logger *log.Logger
	health *handler.HealthHandler
}

func NewRegistry(orch handler.Orchestrator, feed handler.EventFeed, wsHandler *ws.Handler, logger *log.Logger) *Registry {
	return &Registry{
		orch:   orch,
		feed:   feed,
		ws:     wsHandler,
		logger: logger,
		health: handler.NewHealthHandler(feed),
	}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerWS(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	r.health.RegisterRoutes(app)
}

func (r *Registry) registerWS(app *fiber.App) {
	if r.ws == nil {
		return
	}
	app.Get("/ws/events", r.ws.HandleEvents)
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	RegisterV1(api.Group("/v1"), r.orch, r.feed, r.logger)
}
