package v1

import (
	"job-sync/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

// RegisterSync mounts the public status routes and, when guard is set, the
// trigger routes behind it.
func RegisterSync(r fiber.Router, guard fiber.Handler, syncHandler *handler.SyncHandler) {
	if r == nil {
		return
	}
	if syncHandler == nil {
		return
	}

	syncHandler.RegisterRoutes(r)
	syncHandler.RegisterTriggerRoutes(r, guard)
}
