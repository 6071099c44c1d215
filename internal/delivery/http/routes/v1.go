package routes

import (
	"job-sync/internal/delivery/http/middleware"
	v1 "job-sync/internal/delivery/http/routes/v1"
	"job-sync/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
)

func RegisterV1(r fiber.Router, h Handlers, auth *middleware.TriggerAuthMiddleware) {
	if r == nil {
		return
	}

	v1.RegisterJobs(r, h.Jobs)

	if auth == nil {
		v1.RegisterSync(r, nil, h.Sync)
		return
	}
	v1.RegisterSync(r, auth.Require(jwt.ScopeSync), h.Sync)
	v1.RegisterAdmin(r.Group("/admin", auth.Require(jwt.ScopeAdmin)), h.Admin)
}
