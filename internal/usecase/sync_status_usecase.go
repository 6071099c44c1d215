package usecase

import (
	"context"
	"errors"
	"time"

	"job-sync/internal/domain"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const recentRunsLimit = 10

type Pinger interface {
	Ping(ctx context.Context) error
}

type StateSnapshotter interface {
	Snapshot() []pipeline.SourceState
}

type SyncStatusView struct {
	Health          SyncHealth             `json:"health"`
	LastCompleted   *syncrun.Run           `json:"last_completed"`
	Running         []syncrun.Run          `json:"running"`
	RecentRuns      []syncrun.Run          `json:"recent_runs"`
	Jobs            domain.JobStats        `json:"jobs"`
	LiveSources     []pipeline.SourceState `json:"live_sources"`
	DatabaseHealthy bool                   `json:"database_healthy"`
	RedisHealthy    bool                   `json:"redis_healthy"`
	ServerTime      time.Time              `json:"server_time"`
}

type SyncStatusUsecase interface {
	GetStatus(ctx context.Context) (SyncStatusView, error)
	GetRun(ctx context.Context, id uuid.UUID) (syncrun.Run, error)
}

type SyncStatus struct {
	runs  repository.SyncRunRepository
	jobs  repository.JobQueryRepository
	state StateSnapshotter
	db    Pinger
	redis Pinger
	log   logger.Logger
	now   func() time.Time
}

func NewSyncStatusUsecase(runs repository.SyncRunRepository, jobs repository.JobQueryRepository, state StateSnapshotter, db, redis Pinger, log logger.Logger) *SyncStatus {
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncStatus{runs: runs, jobs: jobs, state: state, db: db, redis: redis, log: log, now: time.Now}
}

func (u *SyncStatus) GetStatus(ctx context.Context) (SyncStatusView, error) {
	var view SyncStatusView

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runs, err := u.runs.ListRecent(gctx, recentRunsLimit)
		if err != nil {
			u.log.Error("sync status step failed", zap.String("step", "recent_runs"), zap.Error(err))
			return err
		}
		view.RecentRuns = runs
		return nil
	})
	g.Go(func() error {
		last, err := u.runs.LastCompleted(gctx)
		if err != nil {
			u.log.Error("sync status step failed", zap.String("step", "last_completed"), zap.Error(err))
			return err
		}
		view.LastCompleted = last
		return nil
	})
	g.Go(func() error {
		running, err := u.runs.ListRunning(gctx)
		if err != nil {
			u.log.Error("sync status step failed", zap.String("step", "running"), zap.Error(err))
			return err
		}
		view.Running = running
		return nil
	})
	g.Go(func() error {
		stats, err := u.jobs.Stats(gctx)
		if err != nil {
			u.log.Error("sync status step failed", zap.String("step", "job_stats"), zap.Error(err))
			return err
		}
		view.Jobs = stats
		return nil
	})
	if err := g.Wait(); err != nil {
		return SyncStatusView{}, ErrInternal
	}

	now := u.now().UTC()
	view.Health = computeHealth(view.RecentRuns, now)
	view.LiveSources = []pipeline.SourceState{}
	if u.state != nil {
		view.LiveSources = u.state.Snapshot()
	}
	if view.Running == nil {
		view.Running = []syncrun.Run{}
	}
	view.DatabaseHealthy = ping(ctx, u.db)
	view.RedisHealthy = ping(ctx, u.redis)
	view.ServerTime = now
	return view, nil
}

func (u *SyncStatus) GetRun(ctx context.Context, id uuid.UUID) (syncrun.Run, error) {
	if id == uuid.Nil {
		return syncrun.Run{}, ErrInvalidInput
	}
	run, err := u.runs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return syncrun.Run{}, ErrNotFound
		}
		u.log.Error("get sync run failed", zap.String("run_id", id.String()), zap.Error(err))
		return syncrun.Run{}, ErrInternal
	}
	return run, nil
}

func ping(ctx context.Context, p Pinger) bool {
	if p == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Ping(pctx) == nil
}
