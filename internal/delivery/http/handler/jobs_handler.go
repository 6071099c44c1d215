package handler

import (
	"strings"

	"job-sync/internal/delivery/http/dto"
	"job-sync/internal/pkg/response"
	"job-sync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type JobsHandler struct {
	uc usecase.JobListUsecase
}

func NewJobsHandler(uc usecase.JobListUsecase) *JobsHandler {
	return &JobsHandler{uc: uc}
}

func (h *JobsHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/jobs", h.HandleListJobs)
}

func (h *JobsHandler) HandleListJobs(c fiber.Ctx) error {
	page, err := parseQueryIntStrict(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := parseQueryIntStrict(c, "limit", 20)
	if err != nil {
		return err
	}
	postedWithin, err := parseQueryIntStrict(c, "posted_within_days", 0)
	if err != nil {
		return err
	}
	salaryMin, err := parseQueryIntPtr(c, "salary_min")
	if err != nil {
		return err
	}
	salaryMax, err := parseQueryIntPtr(c, "salary_max")
	if err != nil {
		return err
	}

	res, err := h.uc.ListJobs(c.Context(), usecase.JobListParams{
		Category:         strings.TrimSpace(c.Query("category")),
		Source:           strings.ToLower(strings.TrimSpace(c.Query("source"))),
		LocationType:     strings.ToLower(strings.TrimSpace(c.Query("location_type"))),
		ExperienceLevel:  strings.ToLower(strings.TrimSpace(c.Query("experience_level"))),
		EmploymentType:   strings.ToLower(strings.TrimSpace(c.Query("employment_type"))),
		SalaryMin:        salaryMin,
		SalaryMax:        salaryMax,
		PostedWithinDays: postedWithin,
		Query:            strings.TrimSpace(c.Query("q")),
		Page:             page,
		Limit:            limit,
	})
	if err != nil {
		return mapUsecaseError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewJobListResponse(res))
}
