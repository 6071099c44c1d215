package handler

import (
	"strings"

	"job-sync/internal/delivery/http/dto"
	"job-sync/internal/delivery/http/middleware"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pkg/response"
	"job-sync/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type SyncHandler struct {
	trigger usecase.SyncTriggerUsecase
	status  usecase.SyncStatusUsecase
}

func NewSyncHandler(trigger usecase.SyncTriggerUsecase, status usecase.SyncStatusUsecase) *SyncHandler {
	return &SyncHandler{trigger: trigger, status: status}
}

// RegisterRoutes mounts the read-only routes. Trigger routes are mounted
// separately with their guard.
func (h *SyncHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/sync/status", h.GetStatus)
	r.Get("/sync/runs/:id", h.GetRun)
}

func (h *SyncHandler) RegisterTriggerRoutes(r fiber.Router, guard fiber.Handler) {
	if r == nil || guard == nil {
		return
	}
	r.Post("/sync/run", guard, h.Run)
	r.Get("/cron/:mode", guard, h.Cron)
}

func (h *SyncHandler) Run(c fiber.Ctx) error {
	req := usecase.SyncRunRequest{Mode: string(syncrun.TypeManual)}
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	return h.run(c, req)
}

// Cron serves scheduler pings: GET /cron/daily, GET /cron/hourly.
func (h *SyncHandler) Cron(c fiber.Ctx) error {
	mode := strings.ToLower(strings.TrimSpace(c.Params("mode")))
	if mode != string(syncrun.TypeDaily) && mode != string(syncrun.TypeHourly) {
		return middleware.NewAppError(fiber.StatusNotFound, "Unknown cron mode", nil, nil)
	}
	return h.run(c, usecase.SyncRunRequest{Mode: mode})
}

func (h *SyncHandler) run(c fiber.Ctx, req usecase.SyncRunRequest) error {
	summary, err := h.trigger.Trigger(c.Context(), req)
	if err != nil {
		var data any
		if summary.RunID != uuid.Nil {
			data = dto.NewSyncRunResponse(summary)
		}
		return mapUsecaseErrorWithData(err, data)
	}

	status := fiber.StatusOK
	msg := "sync completed"
	if summary.Status == syncrun.StatusFailed {
		status = fiber.StatusMultiStatus
		msg = "sync failed for every source"
	}
	return response.Success(c, status, msg, dto.NewSyncRunResponse(summary))
}

func (h *SyncHandler) GetStatus(c fiber.Ctx) error {
	view, err := h.status.GetStatus(c.Context())
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewSyncStatusResponse(view))
}

func (h *SyncHandler) GetRun(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid run id", nil, err)
	}
	run, err := h.status.GetRun(c.Context(), id)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, run)
}
