package v1

import (
	"job-sync/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterAdmin(r fiber.Router, adminHandler *handler.AdminHandler) {
	if r == nil {
		return
	}
	if adminHandler == nil {
		return
	}

	adminHandler.RegisterRoutes(r)
}
