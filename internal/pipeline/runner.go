package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/metrics"
	"job-sync/internal/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RunRequest struct {
	Mode        syncrun.Type
	Source      string
	Incremental bool
	StaleDays   int
	ExpiryDays  int
}

type RunLedger interface {
	Create(ctx context.Context, run syncrun.Run) error
	Finalize(ctx context.Context, id uuid.UUID, f syncrun.Finalization) error
}

// Lifecycle is the maintenance a full run performs after its sources.
type Lifecycle interface {
	MarkStaleJobs(ctx context.Context, days int) (int64, error)
	CleanupExpiredJobs(ctx context.Context, days int) (CleanupResult, error)
}

// RunHook is called after a run is finalized, on a context detached from the
// caller's.
type RunHook func(ctx context.Context, s syncrun.Summary)

type Runner struct {
	sources   *SourceProcessor
	lifecycle Lifecycle
	ledger    RunLedger
	adapters  AdapterLookup
	log       logger.Logger
	metrics   *metrics.Metrics
	cfg       config.SyncConfig
	hooks     []RunHook
	now       func() time.Time
}

func NewRunner(sources *SourceProcessor, lifecycle Lifecycle, ledger RunLedger, adapters AdapterLookup, cfg config.SyncConfig, log logger.Logger, m *metrics.Metrics) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		sources:   sources,
		lifecycle: lifecycle,
		ledger:    ledger,
		adapters:  adapters,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (r *Runner) OnFinish(h RunHook) {
	if h != nil {
		r.hooks = append(r.hooks, h)
	}
}

// State exposes the live per-source state for status reporting.
func (r *Runner) State() *RunState { return r.sources.State() }

type plan struct {
	source      string
	incremental bool
	top         bool
	lifecycle   bool
	total       int
}

func (r *Runner) plan(req RunRequest) plan {
	switch req.Mode {
	case syncrun.TypeDaily:
		return plan{lifecycle: true, total: len(r.adapters.Names())}
	case syncrun.TypeHourly:
		return plan{incremental: true, top: true, total: len(r.sources.TopSources())}
	default:
		if req.Source != "" {
			return plan{source: req.Source, incremental: req.Incremental, total: 1}
		}
		return plan{incremental: req.Incremental, lifecycle: !req.Incremental, total: len(r.adapters.Names())}
	}
}

// Run performs one invocation: it opens a ledger entry, syncs the sources
// the mode selects, runs lifecycle maintenance for full runs and finalizes
// the entry exactly once. Partial failures are reported in the summary, not
// as an error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (syncrun.Summary, error) {
	if !req.Mode.Valid() {
		return syncrun.Summary{}, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	req.Source = strings.ToLower(strings.TrimSpace(req.Source))
	if req.Source != "" && req.Mode != syncrun.TypeManual {
		return syncrun.Summary{}, fmt.Errorf("%w: source selection requires manual mode", ErrInvalidMode)
	}

	start := r.now()
	p := r.plan(req)
	run := syncrun.Run{
		ID:           uuid.New(),
		Type:         req.Mode,
		Status:       syncrun.StatusRunning,
		Source:       req.Source,
		SourcesTotal: p.total,
		StartedAt:    start.UTC(),
	}
	summary := syncrun.Summary{
		RunID:   run.ID,
		Type:    run.Type,
		Status:  syncrun.StatusRunning,
		Results: []syncrun.SourceResult{},
		Errors:  []string{},
	}

	if err := r.ledger.Create(ctx, run); err != nil {
		return summary, fmt.Errorf("create sync run: %w", err)
	}
	r.metrics.RunStarted()
	defer r.metrics.RunFinished()

	log := r.log.With(zap.String("run_id", run.ID.String()), zap.String("sync_type", string(run.Type)))
	log.Info("sync run started", zap.String("source", req.Source), zap.Int("sources", p.total))

	if p.source != "" {
		if _, _, ok := r.adapters.Get(p.source); !ok {
			err := fmt.Errorf("%w: %s", ErrUnknownSource, p.source)
			summary.Errors = append(summary.Errors, err.Error())
			summary.Stats.SourcesSkipped = 1
			return r.finalize(ctx, log, start, p, summary, err)
		}
	}

	switch {
	case p.source != "":
		summary.Results = []syncrun.SourceResult{r.sources.SyncSource(ctx, SyncOptions{
			Source:      p.source,
			Incremental: p.incremental,
			RunID:       run.ID,
		})}
	case p.top:
		summary.Results = r.sources.SyncTopSources(ctx, run.ID)
	default:
		summary.Results = r.sources.SyncAllSources(ctx, run.ID, p.incremental)
	}

	stats, errs := syncrun.Aggregate(summary.Results)
	summary.Stats = stats
	summary.Errors = append(summary.Errors, errs...)

	if p.lifecycle {
		r.runLifecycle(ctx, log, req, &summary)
	}
	return r.finalize(ctx, log, start, p, summary, nil)
}

// runLifecycle marks stale and removes expired records. It runs on a
// context detached from the source budget; failures are recorded on the
// run without failing it.
func (r *Runner) runLifecycle(ctx context.Context, log logger.Logger, req RunRequest, s *syncrun.Summary) {
	timeout := r.cfg.LifecycleTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	staleDays := req.StaleDays
	if staleDays <= 0 {
		staleDays = orDefault(r.cfg.StaleDays, DefaultStaleDays)
	}
	expiryDays := req.ExpiryDays
	if expiryDays <= 0 {
		expiryDays = orDefault(r.cfg.ExpiryDays, DefaultExpiryDays)
	}

	staled, err := r.lifecycle.MarkStaleJobs(lctx, staleDays)
	if err != nil {
		log.Error("lifecycle mark stale failed", zap.Error(err))
		s.Errors = append(s.Errors, "lifecycle: "+err.Error())
	}
	s.Stats.Staled = int(staled)

	cleaned, err := r.lifecycle.CleanupExpiredJobs(lctx, expiryDays)
	if err != nil {
		log.Error("lifecycle cleanup failed", zap.Error(err))
		s.Errors = append(s.Errors, "lifecycle: "+err.Error())
	}
	s.Stats.Deleted = int(cleaned.Deleted)
}

func (r *Runner) finalize(ctx context.Context, log logger.Logger, start time.Time, p plan, s syncrun.Summary, cause error) (syncrun.Summary, error) {
	fctx := context.WithoutCancel(ctx)
	finished := r.now()
	s.Stats.DurationMs = finished.Sub(start).Milliseconds()

	s.Status = syncrun.StatusCompleted
	if cause != nil || s.Stats.SourcesCompleted == 0 {
		s.Status = syncrun.StatusFailed
	}
	if cause == nil && len(s.Results) == 0 {
		s.Errors = append(s.Errors, "no sources to sync")
	}

	err := r.ledger.Finalize(fctx, s.RunID, syncrun.Finalization{
		Status:           s.Status,
		SourcesTotal:     p.total,
		SourcesCompleted: s.Stats.SourcesCompleted,
		SourcesSkipped:   s.Stats.SourcesSkipped,
		JobsCreated:      s.Stats.Created,
		JobsUpdated:      s.Stats.Updated,
		JobsStaled:       s.Stats.Staled,
		JobsDeleted:      s.Stats.Deleted,
		Errors:           s.Errors,
		CompletedAt:      finished.UTC(),
		DurationMs:       s.Stats.DurationMs,
	})
	if err != nil {
		log.Error("sync run finalize failed", zap.Error(err))
		cause = errors.Join(cause, fmt.Errorf("finalize sync run: %w", err))
	}

	r.metrics.ObserveRun(string(s.Type), string(s.Status), finished.Sub(start))
	log.Info("sync run finished",
		zap.String("status", string(s.Status)),
		zap.Int("created", s.Stats.Created),
		zap.Int("updated", s.Stats.Updated),
		zap.Int("staled", s.Stats.Staled),
		zap.Int("deleted", s.Stats.Deleted),
		zap.Int("sources_completed", s.Stats.SourcesCompleted),
		zap.Int("sources_skipped", s.Stats.SourcesSkipped),
		zap.Int64("duration_ms", s.Stats.DurationMs),
	)

	for _, h := range r.hooks {
		h(fctx, s)
	}
	return s, cause
}
