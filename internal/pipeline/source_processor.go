package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/domain/job"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/metrics"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/source"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// collectGrace is how long the join barrier keeps reading after the budget
// expires, so sources that stop on cancellation report their own partial
// results.
const collectGrace = 2 * time.Second

type AdapterLookup interface {
	Get(name string) (source.Adapter, source.Descriptor, bool)
	Names() []string
}

type Upserter interface {
	BatchUpsert(ctx context.Context, records []job.Record) (BatchResult, error)
}

// SourceLocker serializes syncs of one source across processes. A nil
// release with ok true means the lock backend was unavailable and the sync
// proceeds unguarded.
type SourceLocker interface {
	AcquireSourceLock(ctx context.Context, source string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type SyncOptions struct {
	Source      string
	Incremental bool
	SinceDays   int
	MaxJobs     int
	RunID       uuid.UUID
}

type SourceProcessor struct {
	adapters AdapterLookup
	batch    Upserter
	state    *RunState
	locker   SourceLocker
	log      logger.Logger
	metrics  *metrics.Metrics
	cfg      config.SyncConfig
	now      func() time.Time
}

func NewSourceProcessor(adapters AdapterLookup, batch Upserter, state *RunState, locker SourceLocker, cfg config.SyncConfig, log logger.Logger, m *metrics.Metrics) *SourceProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	if state == nil {
		state = NewRunState(cfg.StateTTL)
	}
	return &SourceProcessor{
		adapters: adapters,
		batch:    batch,
		state:    state,
		locker:   locker,
		log:      log,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *SourceProcessor) State() *RunState { return p.state }

func (p *SourceProcessor) budget(incremental bool) time.Duration {
	if incremental {
		if p.cfg.IncrementalBudget > 0 {
			return p.cfg.IncrementalBudget
		}
		return 55 * time.Second
	}
	if p.cfg.FullBudget > 0 {
		return p.cfg.FullBudget
	}
	return 5 * time.Minute
}

func (p *SourceProcessor) sinceDays() int {
	if p.cfg.SinceDays > 0 {
		return p.cfg.SinceDays
	}
	return 2
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// SyncSource syncs one source under its own budget.
func (p *SourceProcessor) SyncSource(ctx context.Context, opts SyncOptions) syncrun.SourceResult {
	opts.Source = strings.ToLower(strings.TrimSpace(opts.Source))
	if opts.Incremental && opts.SinceDays <= 0 {
		opts.SinceDays = p.sinceDays()
	}
	if opts.MaxJobs <= 0 {
		if opts.Incremental {
			opts.MaxJobs = orDefault(p.cfg.MaxJobsIncr, 100)
		} else {
			opts.MaxJobs = orDefault(p.cfg.MaxJobsFull, 1000)
		}
	}
	results := p.fanOut(ctx, p.budget(opts.Incremental), []SyncOptions{opts})
	return results[0]
}

// SyncTopSources runs an incremental sync of the configured priority
// subset.
func (p *SourceProcessor) SyncTopSources(ctx context.Context, runID uuid.UUID) []syncrun.SourceResult {
	top := p.TopSources()
	opts := make([]SyncOptions, 0, len(top))
	for _, name := range top {
		opts = append(opts, SyncOptions{
			Source:      name,
			Incremental: true,
			SinceDays:   p.sinceDays(),
			MaxJobs:     orDefault(p.cfg.MaxJobsTop, 200),
			RunID:       runID,
		})
	}
	return p.fanOut(ctx, p.budget(true), opts)
}

// TopSources lists the registered members of the priority subset.
func (p *SourceProcessor) TopSources() []string {
	top := p.cfg.TopSources
	if len(top) == 0 {
		top = []string{source.NameRemotive, source.NameRemoteOK, source.NameHimalayas}
	}
	out := make([]string, 0, len(top))
	seen := make(map[string]struct{}, len(top))
	for _, name := range top {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, _, ok := p.adapters.Get(name); !ok {
			p.log.Warn("top source not registered", zap.String("source", name))
			continue
		}
		out = append(out, name)
	}
	return out
}

// SyncAllSources syncs every registered source concurrently.
func (p *SourceProcessor) SyncAllSources(ctx context.Context, runID uuid.UUID, incremental bool) []syncrun.SourceResult {
	names := p.adapters.Names()
	opts := make([]SyncOptions, 0, len(names))
	for _, name := range names {
		o := SyncOptions{Source: name, Incremental: incremental, RunID: runID, MaxJobs: orDefault(p.cfg.MaxJobsFull, 1000)}
		if incremental {
			o.SinceDays = p.sinceDays()
			o.MaxJobs = orDefault(p.cfg.MaxJobsIncr, 100)
		}
		opts = append(opts, o)
	}
	return p.fanOut(ctx, p.budget(incremental), opts)
}

// fanOut runs every source on the worker pool and joins on the results.
// Sources still running when the budget expires are reported as failed
// with whatever they had committed so far.
func (p *SourceProcessor) fanOut(ctx context.Context, budget time.Duration, opts []SyncOptions) []syncrun.SourceResult {
	if len(opts) == 0 {
		return []syncrun.SourceResult{}
	}
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	workers := p.cfg.Concurrency
	if workers <= 0 || workers > len(opts) {
		workers = len(opts)
	}
	pool := NewWorkerPool(workers, len(opts))
	out := pool.Run(budgetCtx)
	for i, o := range opts {
		pool.Submit(Task{ID: i, Source: o.Source, Run: func(ctx context.Context) syncrun.SourceResult {
			return p.syncOne(ctx, o)
		}})
	}
	pool.Close()

	got := make(map[int]syncrun.SourceResult, len(opts))
	var grace <-chan time.Time
	done := budgetCtx.Done()
collect:
	for len(got) < len(opts) {
		select {
		case r, ok := <-out:
			if !ok {
				break collect
			}
			got[r.ID] = r.SourceResult
		case <-done:
			done = nil
			grace = time.After(collectGrace)
		case <-grace:
			break collect
		}
	}

	results := make([]syncrun.SourceResult, 0, len(opts))
	for i, o := range opts {
		r, ok := got[i]
		if !ok {
			r = p.unfinished(o)
		}
		results = append(results, r)
	}
	return results
}

// unfinished builds a result for a source that did not report before the
// barrier closed, from the progress recorded in the run state.
func (p *SourceProcessor) unfinished(o SyncOptions) syncrun.SourceResult {
	r := syncrun.SourceResult{
		Source: o.Source,
		Errors: []string{ErrBudgetExceeded.Error() + ": still running"},
	}
	if st, ok := p.state.Get(o.Source); ok && st.RunID == o.RunID {
		r.Created = st.Created
		r.Updated = st.Updated
		r.DurationMs = p.now().Sub(st.StartedAt).Milliseconds()
	}
	p.log.Warn("source did not finish within budget", zap.String("source", o.Source))
	return r
}

func (p *SourceProcessor) syncOne(ctx context.Context, o SyncOptions) (res syncrun.SourceResult) {
	start := p.now()
	res = syncrun.SourceResult{Source: o.Source, Errors: []string{}}

	adapter, desc, ok := p.adapters.Get(o.Source)
	if !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", ErrUnknownSource, o.Source))
		return res
	}

	release, ok := p.state.TryAcquire(o.Source)
	if !ok {
		res.Errors = append(res.Errors, ErrSourceBusy.Error())
		return res
	}
	defer release()

	if p.locker != nil {
		unlock, ok, err := p.locker.AcquireSourceLock(ctx, o.Source, p.lockTTL())
		if err != nil {
			p.log.Warn("source lock unavailable", zap.String("source", o.Source), zap.Error(err))
		}
		if !ok {
			res.Errors = append(res.Errors, ErrSourceBusy.Error()+": held by another process")
			return res
		}
		if unlock != nil {
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					p.log.Warn("source lock release failed", zap.String("source", o.Source), zap.Error(err))
				}
			}()
		}
	}

	p.state.Put(SourceState{Source: o.Source, RunID: o.RunID, Phase: PhaseRunning, StartedAt: start})

	defer func() {
		if rec := recover(); rec != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", rec))
			p.log.Error("source sync panicked", zap.String("source", o.Source), zap.Any("panic", rec))
		}
		res.Success = len(res.Errors) == 0
		res.DurationMs = p.now().Sub(start).Milliseconds()
		p.finish(o, res)
	}()

	p.pages(ctx, adapter, desc, o, &res)
	return res
}

func (p *SourceProcessor) lockTTL() time.Duration {
	if p.cfg.SourceLockTTL > 0 {
		return p.cfg.SourceLockTTL
	}
	return 10 * time.Minute
}

// pages walks the source's pages until it reports no more, returns an
// empty or short page, reaches the job cap, or (incremental) returns only
// items older than the cutoff.
func (p *SourceProcessor) pages(ctx context.Context, adapter source.Adapter, desc source.Descriptor, o SyncOptions, res *syncrun.SourceResult) {
	var since *time.Time
	if o.Incremental {
		t := p.now().UTC().AddDate(0, 0, -o.SinceDays)
		since = &t
	}
	limiter := rate.NewLimiter(rate.Every(desc.MinInterval), 1)
	if desc.MinInterval <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	seen := make(map[string]struct{})
	fetched := 0
	log := p.log.With(zap.String("source", o.Source))

	for number := 1; fetched < o.MaxJobs; number++ {
		limit := min(desc.MaxPageSize, o.MaxJobs-fetched)

		if err := limiter.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, budgetError(ctx, err).Error())
			return
		}
		page, err := adapter.Fetch(ctx, source.PageRequest{Number: number, Limit: limit, Since: since})
		if err != nil {
			if ctx.Err() != nil {
				res.Errors = append(res.Errors, budgetError(ctx, err).Error())
				return
			}
			err = fmt.Errorf("%w: page %d: %w", ErrSourceTransient, number, err)
			log.Warn("source fetch failed", zap.Int("page", number), zap.Error(err))
			res.Errors = append(res.Errors, err.Error())
			return
		}

		items := page.Items
		if len(items) == 0 {
			return
		}
		if len(items) > o.MaxJobs-fetched {
			items = items[:o.MaxJobs-fetched]
		}
		fetched += len(items)

		records, older := p.prepare(adapter, items, since, seen, res, log)
		kept, dup := DedupBatch(records)
		res.Skipped += dup + older

		if len(kept) > 0 {
			br, err := p.batch.BatchUpsert(ctx, kept)
			res.Created += br.Created
			res.Updated += br.Updated
			for _, r := range kept {
				seen[r.Key()] = struct{}{}
			}
			p.state.Update(o.Source, func(st *SourceState) {
				st.Page = number
				st.Created = res.Created
				st.Updated = res.Updated
			})
			if err != nil {
				if ctx.Err() != nil {
					err = budgetError(ctx, err)
				}
				log.Warn("source upsert failed", zap.Int("page", number), zap.Error(err))
				res.Errors = append(res.Errors, err.Error())
				return
			}
		}

		switch {
		case !page.HasMore:
			return
		case len(page.Items) < limit:
			return
		case since != nil && older == len(items):
			return
		}
	}
}

// prepare normalizes and validates one page. It returns the records to
// write and how many were dropped as older than the incremental cutoff.
func (p *SourceProcessor) prepare(adapter source.Adapter, items []any, since *time.Time, seen map[string]struct{}, res *syncrun.SourceResult, log logger.Logger) ([]job.Record, int) {
	records := make([]job.Record, 0, len(items))
	older := 0
	for _, raw := range items {
		rec, ok := adapter.Normalize(raw)
		if !ok {
			res.Malformed++
			continue
		}
		warnings, err := rec.Validate()
		if err != nil {
			res.Malformed++
			log.Debug("record rejected", zap.Error(err))
			continue
		}
		for _, w := range warnings {
			res.Warnings++
			log.Warn("record warning", zap.String("warning", w))
		}
		if since != nil && rec.PublishedAt != nil && rec.PublishedAt.Before(*since) {
			older++
			continue
		}
		if _, dup := seen[rec.Key()]; dup {
			res.Skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, older
}

func budgetError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
	}
	return err
}

func (p *SourceProcessor) finish(o SyncOptions, res syncrun.SourceResult) {
	finished := p.now()
	phase := PhaseCompleted
	errText := ""
	if !res.Success {
		phase = PhaseFailed
		errText = strings.Join(res.Errors, "; ")
	}
	p.state.Update(o.Source, func(st *SourceState) {
		st.Phase = phase
		st.Created = res.Created
		st.Updated = res.Updated
		st.Error = errText
		st.FinishedAt = &finished
	})

	p.metrics.ObserveSource(o.Source, res.Success, time.Duration(res.DurationMs)*time.Millisecond, map[string]int{
		"created":   res.Created,
		"updated":   res.Updated,
		"skipped":   res.Skipped,
		"malformed": res.Malformed,
	})

	fields := []zap.Field{
		zap.String("source", o.Source),
		zap.Bool("success", res.Success),
		zap.Bool("incremental", o.Incremental),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("malformed", res.Malformed),
		zap.Int64("duration_ms", res.DurationMs),
	}
	if res.Success {
		p.log.Info("sync source finished", fields...)
		return
	}
	p.log.Warn("sync source finished", append(fields, zap.Strings("errors", res.Errors))...)
}
