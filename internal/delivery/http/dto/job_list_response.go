package dto

import "job-sync/internal/usecase"

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type JobListResponse struct {
	Jobs       []usecase.JobListItem `json:"jobs"`
	Pagination Pagination            `json:"pagination"`
}

func NewJobListResponse(r usecase.JobListResult) JobListResponse {
	jobs := r.Items
	if jobs == nil {
		jobs = []usecase.JobListItem{}
	}
	return JobListResponse{
		Jobs: jobs,
		Pagination: Pagination{
			Page:       r.Page,
			Limit:      r.Limit,
			Total:      r.Total,
			TotalPages: r.TotalPages,
			HasMore:    r.Page < r.TotalPages,
		},
	}
}
