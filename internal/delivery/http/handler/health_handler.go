package handler

import (
	"context"
	"time"

	"job-sync/internal/pkg/response"
	"job-sync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type HealthHandler struct {
	db usecase.Pinger
}

func NewHealthHandler(db usecase.Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	if h.db == nil {
		return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{"database": "unchecked"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "database unreachable", fiber.Map{"database": "down"})
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{"database": "up"})
}
