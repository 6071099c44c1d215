package pipeline

import (
	"context"
	"fmt"
	"time"

	"job-sync/internal/domain/job"
	"job-sync/internal/metrics"
	"job-sync/internal/pkg/logger"
	"job-sync/internal/repository"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize      = 50
	DefaultStaleDays      = 60
	DefaultExpiryDays     = 90
	DefaultReactivateDays = 30
)

// JobStore is the persistence surface the batch processor and dedup engine
// need.
type JobStore interface {
	UpsertBatch(ctx context.Context, records []job.Record) (repository.UpsertResult, error)
	MarkStale(ctx context.Context, publishedBefore time.Time) (int64, error)
	DeleteExpired(ctx context.Context, staleBefore time.Time) (int64, error)
	DeactivateExpiredWithRelations(ctx context.Context, staleBefore time.Time) (int64, error)
	ReactivateRecent(ctx context.Context, syncedSince time.Time) (int64, error)
	DeactivateSource(ctx context.Context, source string) (int64, error)
}

type BatchResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type CleanupResult struct {
	Deleted     int64 `json:"deleted"`
	Deactivated int64 `json:"deactivated"`
}

type BatchProcessor struct {
	store     JobStore
	log       logger.Logger
	metrics   *metrics.Metrics
	batchSize int
	now       func() time.Time
}

func NewBatchProcessor(store JobStore, log logger.Logger, m *metrics.Metrics) *BatchProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchProcessor{
		store:     store,
		log:       log,
		metrics:   m,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
}

// BatchUpsert persists records in sub-batches, each in its own transaction.
// Counts cover committed sub-batches only; when any sub-batch fails the
// returned error wraps ErrPartialBatch and Failed counts its records.
func (p *BatchProcessor) BatchUpsert(ctx context.Context, records []job.Record) (BatchResult, error) {
	var res BatchResult
	var firstErr error
	failedBatches := 0

	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		chunk := records[start:end]

		if err := ctx.Err(); err != nil {
			res.Failed += len(records) - start
			if firstErr == nil {
				firstErr = err
			}
			failedBatches++
			break
		}

		r, err := p.store.UpsertBatch(ctx, chunk)
		if err != nil {
			p.metrics.UpsertBatch(false)
			p.log.Warn("upsert batch failed",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
			res.Failed += len(chunk)
			failedBatches++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.metrics.UpsertBatch(true)
		res.Created += r.Created
		res.Updated += r.Updated
	}

	if firstErr != nil {
		return res, fmt.Errorf("%w: %d of %d records in %d batch(es) not written: %w",
			ErrPartialBatch, res.Failed, len(records), failedBatches, firstErr)
	}
	return res, nil
}

// MarkStaleJobs moves active records published more than days ago to stale.
func (p *BatchProcessor) MarkStaleJobs(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultStaleDays
	}
	n, err := p.store.MarkStale(ctx, p.cutoff(days))
	if err != nil {
		return 0, fmt.Errorf("mark stale: %w", err)
	}
	p.metrics.Lifecycle("staled", n)
	p.log.Info("jobs marked stale", zap.Int64("count", n), zap.Int("days", days))
	return n, nil
}

// CleanupExpiredJobs deletes stale records aged past days that have no
// saved-job or application rows. Aged records that do have them are
// deactivated instead.
func (p *BatchProcessor) CleanupExpiredJobs(ctx context.Context, days int) (CleanupResult, error) {
	if days <= 0 {
		days = DefaultExpiryDays
	}
	cutoff := p.cutoff(days)

	deleted, err := p.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired: %w", err)
	}
	deactivated, err := p.store.DeactivateExpiredWithRelations(ctx, cutoff)
	if err != nil {
		return CleanupResult{Deleted: deleted}, fmt.Errorf("deactivate expired: %w", err)
	}

	p.metrics.Lifecycle("deleted", deleted)
	p.metrics.Lifecycle("deactivated", deactivated)
	p.log.Info("expired jobs cleaned up",
		zap.Int64("deleted", deleted),
		zap.Int64("deactivated", deactivated),
		zap.Int("days", days),
	)
	return CleanupResult{Deleted: deleted, Deactivated: deactivated}, nil
}

// ReactivateRecentJobs returns stale records seen by a sync within days to
// active.
func (p *BatchProcessor) ReactivateRecentJobs(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultReactivateDays
	}
	n, err := p.store.ReactivateRecent(ctx, p.cutoff(days))
	if err != nil {
		return 0, fmt.Errorf("reactivate: %w", err)
	}
	p.metrics.Lifecycle("reactivated", n)
	p.log.Info("stale jobs reactivated", zap.Int64("count", n), zap.Int("days", days))
	return n, nil
}

func (p *BatchProcessor) DeactivateSource(ctx context.Context, source string) (int64, error) {
	n, err := p.store.DeactivateSource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("deactivate source %s: %w", source, err)
	}
	p.metrics.Lifecycle("source_deactivated", n)
	p.log.Info("source deactivated", zap.String("source", source), zap.Int64("count", n))
	return n, nil
}

func (p *BatchProcessor) cutoff(days int) time.Time {
	return p.now().UTC().AddDate(0, 0, -days)
}
