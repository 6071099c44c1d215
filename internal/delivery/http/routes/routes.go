package routes

import (
	"job-sync/internal/delivery/http/handler"
	"job-sync/internal/delivery/http/middleware"

	"github.com/gofiber/fiber/v3"
)

type Handlers struct {
	Health *handler.HealthHandler
	Jobs   *handler.JobsHandler
	Sync   *handler.SyncHandler
	Admin  *handler.AdminHandler
}

type Registry struct {
	handlers Handlers
	auth     *middleware.TriggerAuthMiddleware
	metrics  fiber.Handler
}

// NewRegistry collects the route handlers. A nil auth middleware leaves the
// trigger and admin routes unmounted.
func NewRegistry(h Handlers, auth *middleware.TriggerAuthMiddleware, metrics fiber.Handler) *Registry {
	return &Registry{handlers: h, auth: auth, metrics: metrics}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(app)
	}
	if r.metrics != nil {
		app.Get("/metrics", r.metrics)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	RegisterV1(api.Group("/v1"), r.handlers, r.auth)
}
