package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"job-sync/internal/domain"
	"job-sync/internal/domain/job"
	"job-sync/internal/pipeline"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBulkIDs = 1000

type BulkUpdateFields struct {
	Category        *string `json:"category" validate:"omitnil,min=1,max=100"`
	IsActive        *bool   `json:"is_active"`
	SyncStatus      *string `json:"sync_status" validate:"omitnil,oneof=active stale expired"`
	ExperienceLevel *string `json:"experience_level" validate:"omitnil,oneof=entry mid senior executive"`
	EmploymentType  *string `json:"employment_type" validate:"omitnil,oneof=full-time part-time contract internship temporary"`
}

type BulkUpdateRequest struct {
	JobIDs  []uuid.UUID      `json:"job_ids" validate:"required,min=1,max=1000"`
	Updates BulkUpdateFields `json:"updates"`
}

type BulkUpdateResult struct {
	Updated int64 `json:"updated"`
}

type BulkDeleteRequest struct {
	JobIDs []uuid.UUID `json:"job_ids" validate:"required,min=1,max=1000"`
}

type SkippedJob struct {
	ID           uuid.UUID `json:"id"`
	SavedJobs    int       `json:"saved_jobs"`
	Applications int       `json:"applications"`
	Reason       string    `json:"reason"`
}

type BulkDeleteResult struct {
	Deleted     int64        `json:"deleted"`
	Skipped     int          `json:"skipped"`
	SkippedJobs []SkippedJob `json:"skipped_jobs"`
}

type RemoveDuplicatesRequest struct {
	Pass   string `json:"pass" validate:"omitempty,oneof=exact content"`
	DryRun bool   `json:"dry_run"`
}

type AdminJobStore interface {
	BulkUpdate(ctx context.Context, ids []uuid.UUID, u repository.JobUpdate) (int64, error)
	RelationCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]repository.RelationCount, error)
	DeleteWithoutRelations(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type Deduplicator interface {
	Run(ctx context.Context, dryRun bool) ([]pipeline.DedupReport, error)
	RunPass(ctx context.Context, pass pipeline.DedupPass, dryRun bool) (pipeline.DedupReport, error)
}

type LifecycleAdmin interface {
	ReactivateRecentJobs(ctx context.Context, days int) (int64, error)
	DeactivateSource(ctx context.Context, source string) (int64, error)
}

type JobAdminUsecase interface {
	BulkUpdate(ctx context.Context, req BulkUpdateRequest) (BulkUpdateResult, error)
	BulkDelete(ctx context.Context, req BulkDeleteRequest) (BulkDeleteResult, error)
	RemoveDuplicates(ctx context.Context, req RemoveDuplicatesRequest) ([]pipeline.DedupReport, error)
	Reactivate(ctx context.Context, days int) (int64, error)
	DeactivateSource(ctx context.Context, source string) (int64, error)
	CleanupStats(ctx context.Context, staleDays int) (domain.CleanupStats, error)
}

type JobAdmin struct {
	store     AdminJobStore
	queries   repository.JobQueryRepository
	dedup     Deduplicator
	lifecycle LifecycleAdmin
	cache     ListCache
	log       logger.Logger
}

func NewJobAdminUsecase(store AdminJobStore, queries repository.JobQueryRepository, dedup Deduplicator, lifecycle LifecycleAdmin, cache ListCache, log logger.Logger) *JobAdmin {
	if log == nil {
		log = logger.NewNop()
	}
	return &JobAdmin{store: store, queries: queries, dedup: dedup, lifecycle: lifecycle, cache: cache, log: log}
}

// BulkUpdate applies the same typed field set to every listed job. Only the
// enumerated fields can be written.
func (u *JobAdmin) BulkUpdate(ctx context.Context, req BulkUpdateRequest) (BulkUpdateResult, error) {
	if err := validateInput(req); err != nil {
		return BulkUpdateResult{}, err
	}
	ids, err := checkIDs(req.JobIDs)
	if err != nil {
		return BulkUpdateResult{}, err
	}

	upd := toJobUpdate(req.Updates)
	if upd.Empty() {
		return BulkUpdateResult{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	n, err := u.store.BulkUpdate(ctx, ids, upd)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyUpdate) {
			return BulkUpdateResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		u.log.Error("bulk update failed", zap.Int("jobs", len(ids)), zap.Error(err))
		return BulkUpdateResult{}, ErrInternal
	}
	u.log.Info("bulk update applied", zap.Int("requested", len(ids)), zap.Int64("updated", n))
	u.invalidate(ctx)
	return BulkUpdateResult{Updated: n}, nil
}

// BulkDelete removes the listed jobs, skipping any that are saved or applied
// to.
func (u *JobAdmin) BulkDelete(ctx context.Context, req BulkDeleteRequest) (BulkDeleteResult, error) {
	if err := validateInput(req); err != nil {
		return BulkDeleteResult{}, err
	}
	ids, err := checkIDs(req.JobIDs)
	if err != nil {
		return BulkDeleteResult{}, err
	}

	counts, err := u.store.RelationCounts(ctx, ids)
	if err != nil {
		u.log.Error("bulk delete relation check failed", zap.Error(err))
		return BulkDeleteResult{}, ErrInternal
	}

	res := BulkDeleteResult{SkippedJobs: []SkippedJob{}}
	deletable := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		c, ok := counts[id]
		if ok && c.Any() {
			res.SkippedJobs = append(res.SkippedJobs, SkippedJob{
				ID:           id,
				SavedJobs:    c.SavedJobs,
				Applications: c.Applications,
				Reason:       fmt.Sprintf("has %d saved and %d applications", c.SavedJobs, c.Applications),
			})
			continue
		}
		deletable = append(deletable, id)
	}
	res.Skipped = len(res.SkippedJobs)

	if len(deletable) > 0 {
		n, err := u.store.DeleteWithoutRelations(ctx, deletable)
		if err != nil {
			u.log.Error("bulk delete failed", zap.Error(err))
			return BulkDeleteResult{}, ErrInternal
		}
		res.Deleted = n
		u.invalidate(ctx)
	}
	u.log.Info("bulk delete applied", zap.Int64("deleted", res.Deleted), zap.Int("skipped", res.Skipped))
	return res, nil
}

func (u *JobAdmin) RemoveDuplicates(ctx context.Context, req RemoveDuplicatesRequest) ([]pipeline.DedupReport, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}

	var reports []pipeline.DedupReport
	if req.Pass == "" {
		rs, err := u.dedup.Run(ctx, req.DryRun)
		if err != nil {
			u.log.Error("remove duplicates failed", zap.Error(err))
			return nil, ErrInternal
		}
		reports = rs
	} else {
		r, err := u.dedup.RunPass(ctx, pipeline.DedupPass(req.Pass), req.DryRun)
		if err != nil {
			u.log.Error("remove duplicates failed", zap.String("pass", req.Pass), zap.Error(err))
			return nil, ErrInternal
		}
		reports = []pipeline.DedupReport{r}
	}

	if !req.DryRun {
		u.invalidate(ctx)
	}
	return reports, nil
}

func (u *JobAdmin) Reactivate(ctx context.Context, days int) (int64, error) {
	if days == 0 {
		days = pipeline.DefaultReactivateDays
	}
	if days < 1 || days > 365 {
		return 0, fmt.Errorf("%w: days must be between 1 and 365", ErrInvalidInput)
	}
	n, err := u.lifecycle.ReactivateRecentJobs(ctx, days)
	if err != nil {
		u.log.Error("reactivate failed", zap.Error(err))
		return 0, ErrInternal
	}
	u.invalidate(ctx)
	return n, nil
}

func (u *JobAdmin) DeactivateSource(ctx context.Context, source string) (int64, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return 0, fmt.Errorf("%w: source is required", ErrInvalidInput)
	}
	n, err := u.lifecycle.DeactivateSource(ctx, source)
	if err != nil {
		u.log.Error("deactivate source failed", zap.String("source", source), zap.Error(err))
		return 0, ErrInternal
	}
	u.invalidate(ctx)
	return n, nil
}

func (u *JobAdmin) CleanupStats(ctx context.Context, staleDays int) (domain.CleanupStats, error) {
	if staleDays < 0 || staleDays > 3650 {
		return domain.CleanupStats{}, fmt.Errorf("%w: stale_days out of range", ErrInvalidInput)
	}
	stats, err := u.queries.CleanupStats(ctx, staleDays)
	if err != nil {
		u.log.Error("cleanup stats failed", zap.Error(err))
		return domain.CleanupStats{}, ErrInternal
	}
	return stats, nil
}

func (u *JobAdmin) invalidate(ctx context.Context) {
	if u.cache == nil {
		return
	}
	if _, err := u.cache.InvalidateJobLists(ctx); err != nil {
		u.log.Warn("jobs cache invalidation failed", zap.Error(err))
	}
}

// checkIDs rejects nil ids and removes repeats, preserving order.
func checkIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) > maxBulkIDs {
		return nil, fmt.Errorf("%w: at most %d job ids", ErrInvalidInput, maxBulkIDs)
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, fmt.Errorf("%w: nil job id", ErrInvalidInput)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func toJobUpdate(f BulkUpdateFields) repository.JobUpdate {
	var u repository.JobUpdate
	if f.Category != nil {
		v := strings.TrimSpace(*f.Category)
		u.Category = &v
	}
	u.IsActive = f.IsActive
	if f.SyncStatus != nil {
		v := job.SyncStatus(*f.SyncStatus)
		u.SyncStatus = &v
	}
	if f.ExperienceLevel != nil {
		v := job.ExperienceLevel(*f.ExperienceLevel)
		u.ExperienceLevel = &v
	}
	if f.EmploymentType != nil {
		v := job.EmploymentType(*f.EmploymentType)
		u.EmploymentType = &v
	}
	return u
}
