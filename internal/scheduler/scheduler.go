// Package scheduler fires daily and hourly sync runs from cron expressions
// inside a long-running process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"
	"job-sync/internal/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (syncrun.Summary, error)
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	cfg     config.ScheduleConfig
	log     logger.Logger
	timeout time.Duration
	entries map[syncrun.Type]cron.EntryID
}

// New builds a scheduler. timeout bounds each triggered run; zero leaves runs
// bounded only by the runner's own budgets.
func New(runner Runner, cfg config.ScheduleConfig, timeout time.Duration, log logger.Logger) *Scheduler {
	log = logger.OrNop(log)
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		cfg:     cfg,
		log:     log,
		timeout: timeout,
		entries: map[syncrun.Type]cron.EntryID{},
	}
}

// Start registers the configured schedules and starts the cron loop. An
// empty expression disables that mode.
func (s *Scheduler) Start(ctx context.Context) error {
	for mode, spec := range map[syncrun.Type]string{
		syncrun.TypeDaily:  s.cfg.Daily,
		syncrun.TypeHourly: s.cfg.Hourly,
	} {
		if spec == "" {
			continue
		}
		id, err := s.cron.AddFunc(spec, s.job(ctx, mode))
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", mode, spec, err)
		}
		s.entries[mode] = id
	}
	if len(s.entries) == 0 {
		return fmt.Errorf("no schedules configured")
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("daily", s.cfg.Daily), zap.String("hourly", s.cfg.Hourly))
	return nil
}

// Stop halts the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Next reports when mode fires next; zero when it is not scheduled.
func (s *Scheduler) Next(mode syncrun.Type) time.Time {
	id, ok := s.entries[mode]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) job(ctx context.Context, mode syncrun.Type) func() {
	return func() {
		runCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		sum, err := s.runner.Run(runCtx, pipeline.RunRequest{Mode: mode})
		if err != nil {
			s.log.Error("scheduled sync failed", zap.String("mode", string(mode)), zap.Error(err))
			return
		}
		s.log.Info("scheduled sync finished",
			zap.String("mode", string(mode)),
			zap.String("run_id", sum.RunID.String()),
			zap.String("status", string(sum.Status)),
			zap.Int("created", sum.Stats.Created),
			zap.Int("updated", sum.Stats.Updated),
		)
	}
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
