package usecase

import (
	"context"
	"time"

	"job-sync/internal/domain/job"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type JobListParams struct {
	Category         string `validate:"max=100"`
	Source           string `validate:"max=64"`
	LocationType     string `validate:"omitempty,oneof=onsite remote hybrid"`
	ExperienceLevel  string `validate:"omitempty,oneof=entry mid senior executive"`
	EmploymentType   string `validate:"omitempty,oneof=full-time part-time contract internship temporary"`
	SalaryMin        *int   `validate:"omitempty,gte=0"`
	SalaryMax        *int   `validate:"omitempty,gte=0"`
	PostedWithinDays int    `validate:"gte=0,lte=365"`
	Query            string `validate:"max=200"`
	Page             int    `validate:"gte=1"`
	Limit            int    `validate:"gte=1,lte=100"`
}

type JobListItem struct {
	ID              uuid.UUID  `json:"id"`
	Source          string     `json:"source"`
	ExternalID      string     `json:"external_id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	CompanyLogo     string     `json:"company_logo,omitempty"`
	CompanyURL      string     `json:"company_url,omitempty"`
	Category        string     `json:"category,omitempty"`
	Location        string     `json:"location,omitempty"`
	LocationType    string     `json:"location_type"`
	ExperienceLevel string     `json:"experience_level,omitempty"`
	EmploymentType  string     `json:"employment_type,omitempty"`
	SalaryMin       *int       `json:"salary_min"`
	SalaryMax       *int       `json:"salary_max"`
	SalaryCurrency  string     `json:"salary_currency,omitempty"`
	SalaryPeriod    string     `json:"salary_period,omitempty"`
	Description     string     `json:"description"`
	Requirements    string     `json:"requirements,omitempty"`
	Benefits        string     `json:"benefits,omitempty"`
	Tags            []string   `json:"tags"`
	ApplyURL        string     `json:"apply_url,omitempty"`
	PublishedAt     *time.Time `json:"published_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	SyncStatus      string     `json:"sync_status"`
	LastSyncedAt    time.Time  `json:"last_synced_at"`
}

type JobListResult struct {
	Items      []JobListItem `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

type JobListUsecase interface {
	ListJobs(ctx context.Context, params JobListParams) (JobListResult, error)
}

type JobList struct {
	jobs  repository.JobQueryRepository
	cache ListCache
	ttl   time.Duration
	log   logger.Logger
}

func NewJobListUsecase(jobs repository.JobQueryRepository, cache ListCache, ttl time.Duration, log logger.Logger) *JobList {
	if log == nil {
		log = logger.NewNop()
	}
	return &JobList{jobs: jobs, cache: cache, ttl: ttl, log: log}
}

func (u *JobList) ListJobs(ctx context.Context, params JobListParams) (JobListResult, error) {
	if params.Page == 0 {
		params.Page = 1
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if err := validateInput(params); err != nil {
		return JobListResult{}, err
	}

	key := JobsListCacheKey(params)
	if u.cache != nil {
		var cached JobListResult
		hit, err := u.cache.GetJSON(ctx, key, &cached)
		if err == nil && hit {
			u.log.Debug("jobs cache hit", zap.String("key", key))
			return cached, nil
		}
		u.log.Debug("jobs cache miss", zap.String("key", key))
	}

	records, total, err := u.jobs.List(ctx, repository.ListFilter{
		Category:         params.Category,
		Source:           params.Source,
		LocationType:     params.LocationType,
		ExperienceLevel:  params.ExperienceLevel,
		EmploymentType:   params.EmploymentType,
		SalaryMin:        params.SalaryMin,
		SalaryMax:        params.SalaryMax,
		PostedWithinDays: params.PostedWithinDays,
		Query:            params.Query,
		Limit:            params.Limit,
		Offset:           (params.Page - 1) * params.Limit,
	})
	if err != nil {
		u.log.Error("list jobs failed", zap.Error(err))
		return JobListResult{}, ErrInternal
	}

	out := JobListResult{
		Items:      make([]JobListItem, 0, len(records)),
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages(total, params.Limit),
	}
	for _, r := range records {
		out.Items = append(out.Items, toJobListItem(r))
	}

	if u.cache != nil {
		if err := u.cache.SetJSON(ctx, key, out, u.ttl); err != nil {
			u.log.Warn("jobs cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

// InvalidateAfterRun drops cached listings once a sync run has written.
func (u *JobList) InvalidateAfterRun(ctx context.Context, s syncrun.Summary) {
	if u.cache == nil {
		return
	}
	n, err := u.cache.InvalidateJobLists(ctx)
	if err != nil {
		u.log.Warn("jobs cache invalidation failed", zap.String("run_id", s.RunID.String()), zap.Error(err))
		return
	}
	u.log.Debug("jobs cache invalidated", zap.String("run_id", s.RunID.String()), zap.Int("keys", n))
}

func totalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func toJobListItem(r job.Record) JobListItem {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return JobListItem{
		ID:              r.ID,
		Source:          r.Source,
		ExternalID:      r.ExternalID,
		Title:           r.Title,
		Company:         r.Company,
		CompanyLogo:     r.CompanyLogo,
		CompanyURL:      r.CompanyURL,
		Category:        r.Category,
		Location:        r.Location,
		LocationType:    string(r.LocationType),
		ExperienceLevel: string(r.ExperienceLevel),
		EmploymentType:  string(r.EmploymentType),
		SalaryMin:       r.SalaryMin,
		SalaryMax:       r.SalaryMax,
		SalaryCurrency:  r.SalaryCurrency,
		SalaryPeriod:    string(r.SalaryPeriod),
		Description:     r.Description,
		Requirements:    r.Requirements,
		Benefits:        r.Benefits,
		Tags:            tags,
		ApplyURL:        r.ApplyURL,
		PublishedAt:     r.PublishedAt,
		ExpiresAt:       r.ExpiresAt,
		SyncStatus:      string(r.SyncStatus),
		LastSyncedAt:    r.LastSyncedAt,
	}
}
