package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/database"
	"job-sync/internal/database/migration"
	dbpostgres "job-sync/internal/database/postgres"
	"job-sync/internal/infrastructure/cache"
	"job-sync/internal/metrics"
	"job-sync/internal/pipeline"
	"job-sync/internal/pkg/jwt"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/pkg/retry"
	"job-sync/internal/repository"
	"job-sync/internal/source"
	"job-sync/internal/usecase"
	"job-sync/migrations"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Container owns every long-lived dependency of the service. The HTTP server
// and the CLI build one each.
type Container struct {
	Config config.Config
	Log    logger.Logger

	DB       database.DB
	Redis    *cache.Redis
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	JWT      *jwt.HMACService

	Sources *source.Registry
	Jobs    *repository.PostgresJobRepository
	Queries *repository.PostgresJobQueryRepository
	Runs    *repository.PostgresSyncRunRepository

	State  *pipeline.RunState
	Batch  *pipeline.BatchProcessor
	Dedup  *pipeline.DedupEngine
	Runner *pipeline.Runner

	JobList     *usecase.JobList
	SyncStatus  *usecase.SyncStatus
	SyncTrigger *usecase.SyncTrigger
	JobAdmin    *usecase.JobAdmin
}

func NewContainer(ctx context.Context, cfg config.Config, log logger.Logger) (*Container, error) {
	log = logger.OrNop(log)

	db, err := connectDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Log: log, DB: db}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.New(c.Registry)

	c.Redis = cache.NewRedis(ctx, cfg.Redis, log)
	c.JWT = jwt.NewHMACService(cfg.Trigger.Secret, cfg.Trigger.TokenTTL)

	c.Sources, err = source.NewDefaultRegistry(cfg.Sources, &http.Client{Timeout: cfg.Sync.HTTPTimeout})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("build source registry: %w", err)
	}

	c.Jobs = repository.NewPostgresJobRepository(db)
	c.Queries = repository.NewPostgresJobQueryRepository(db)
	c.Runs = repository.NewPostgresSyncRunRepository(db)

	c.State = pipeline.NewRunState(cfg.Sync.StateTTL)
	c.Batch = pipeline.NewBatchProcessor(c.Jobs, log, c.Metrics)
	c.Dedup = pipeline.NewDedupEngine(c.Jobs, log, c.Metrics)
	sp := pipeline.NewSourceProcessor(c.Sources, c.Batch, c.State, c.Redis, cfg.Sync, log, c.Metrics)
	c.Runner = pipeline.NewRunner(sp, c.Batch, c.Runs, c.Sources, cfg.Sync, log, c.Metrics)

	c.JobList = usecase.NewJobListUsecase(c.Queries, c.Redis, cfg.Redis.TTL, log)
	c.Runner.OnFinish(c.JobList.InvalidateAfterRun)

	c.SyncStatus = usecase.NewSyncStatusUsecase(c.Runs, c.Queries, c.State, db, c.Redis, log)
	c.SyncTrigger = usecase.NewSyncTriggerUsecase(c.Runner)
	c.JobAdmin = usecase.NewJobAdminUsecase(c.Jobs, c.Queries, c.Dedup, c.Batch, c.Redis, log)

	return c, nil
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (database.DB, error) {
	rc := retry.DefaultConfig()
	if cfg.ConnectAttempts > 0 {
		rc.MaxAttempts = cfg.ConnectAttempts
	}
	rc.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("database connect failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var db database.DB
	err := retry.Do(ctx, rc, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
		defer cancel()

		var err error
		db, err = dbpostgres.Connect(attemptCtx, cfg, log)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func connectTimeout(cfg config.DatabaseConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return 5 * time.Second
}

// Migrate applies pending schema migrations.
func (c *Container) Migrate(ctx context.Context) error {
	r := migration.Runner{FS: migrations.FS, Log: c.Log}
	if err := r.Run(ctx, c.DB.SQLDB()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// RecoverAbandonedRuns fails ledger entries a crashed process left running.
func (c *Container) RecoverAbandonedRuns(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-abandonAfter(c.Config.Sync))
	n, err := c.Runs.MarkAbandoned(ctx, cutoff)
	if err != nil {
		c.Log.Warn("mark abandoned runs failed", zap.Error(err))
		return
	}
	if n > 0 {
		c.Log.Info("abandoned runs marked failed", zap.Int64("count", n))
	}
}

func abandonAfter(cfg config.SyncConfig) time.Duration {
	return cfg.FullBudget + cfg.LifecycleTimeout + time.Minute
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
