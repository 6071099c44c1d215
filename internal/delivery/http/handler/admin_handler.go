package handler

import (
	"strings"

	"job-sync/internal/delivery/http/dto"
	"job-sync/internal/pkg/response"
	"job-sync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type AdminHandler struct {
	uc usecase.JobAdminUsecase
}

func NewAdminHandler(uc usecase.JobAdminUsecase) *AdminHandler {
	return &AdminHandler{uc: uc}
}

// RegisterRoutes expects r to already sit behind admin-scoped trigger auth.
func (h *AdminHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/bulk-update", h.BulkUpdate)
	r.Post("/jobs/bulk-delete", h.BulkDelete)
	r.Post("/jobs/remove-duplicates", h.RemoveDuplicates)
	r.Post("/jobs/reactivate", h.Reactivate)
	r.Post("/sources/:source/deactivate", h.DeactivateSource)
	r.Get("/jobs/cleanup-stats", h.CleanupStats)
}

func (h *AdminHandler) BulkUpdate(c fiber.Ctx) error {
	var req usecase.BulkUpdateRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	res, err := h.uc.BulkUpdate(c.Context(), req)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "jobs updated", res)
}

func (h *AdminHandler) BulkDelete(c fiber.Ctx) error {
	var req usecase.BulkDeleteRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	res, err := h.uc.BulkDelete(c.Context(), req)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "jobs deleted", res)
}

func (h *AdminHandler) RemoveDuplicates(c fiber.Ctx) error {
	var req usecase.RemoveDuplicatesRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	dryRun, err := parseQueryBool(c, "dry_run")
	if err != nil {
		return err
	}
	req.DryRun = req.DryRun || dryRun

	reports, err := h.uc.RemoveDuplicates(c.Context(), req)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, reports)
}

func (h *AdminHandler) Reactivate(c fiber.Ctx) error {
	var req dto.ReactivateRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	n, err := h.uc.Reactivate(c.Context(), req.Days)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "jobs reactivated", dto.AffectedResponse{Affected: n})
}

func (h *AdminHandler) DeactivateSource(c fiber.Ctx) error {
	n, err := h.uc.DeactivateSource(c.Context(), strings.TrimSpace(c.Params("source")))
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "source deactivated", dto.AffectedResponse{Affected: n})
}

func (h *AdminHandler) CleanupStats(c fiber.Ctx) error {
	staleDays, err := parseQueryIntStrict(c, "stale_days", 0)
	if err != nil {
		return err
	}
	stats, err := h.uc.CleanupStats(c.Context(), staleDays)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, stats)
}
