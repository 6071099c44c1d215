package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"job-sync/internal/database"
	"job-sync/internal/domain/syncrun"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrRunNotFound         = errors.New("sync run not found")
	ErrRunAlreadyFinalized = errors.New("sync run already finalized")
)

type SyncRunRepository interface {
	Create(ctx context.Context, run syncrun.Run) error
	Finalize(ctx context.Context, id uuid.UUID, f syncrun.Finalization) error
	Get(ctx context.Context, id uuid.UUID) (syncrun.Run, error)
	ListRecent(ctx context.Context, limit int) ([]syncrun.Run, error)
	LastCompleted(ctx context.Context) (*syncrun.Run, error)
	ListRunning(ctx context.Context) ([]syncrun.Run, error)
	MarkAbandoned(ctx context.Context, startedBefore time.Time) (int64, error)
}

type PostgresSyncRunRepository struct {
	db database.DB
}

func NewPostgresSyncRunRepository(db database.DB) *PostgresSyncRunRepository {
	return &PostgresSyncRunRepository{db: db}
}

const runColumns = `id, sync_type, status, COALESCE(source, ''),
	sources_total, sources_completed, sources_skipped,
	jobs_created, jobs_updated, jobs_staled, jobs_deleted,
	errors, started_at, completed_at, duration_ms`

func (r *PostgresSyncRunRepository) Create(ctx context.Context, run syncrun.Run) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("sync run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sync_runs (id, sync_type, status, source, sources_total, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID,
		string(run.Type),
		string(syncrun.StatusRunning),
		nullableText(run.Source),
		run.SourcesTotal,
		run.StartedAt,
	)
	return err
}

// Finalize moves a running entry to its terminal state. A second call for
// the same run returns ErrRunAlreadyFinalized and writes nothing.
func (r *PostgresSyncRunRepository) Finalize(ctx context.Context, id uuid.UUID, f syncrun.Finalization) error {
	if f.Status != syncrun.StatusCompleted && f.Status != syncrun.StatusFailed {
		return fmt.Errorf("invalid terminal status %q", f.Status)
	}
	errs, err := encodeErrors(f.Errors)
	if err != nil {
		return err
	}
	completedAt := f.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	n, err := r.db.Exec(ctx,
		`UPDATE sync_runs
		 SET status = $2,
		     sources_total = $3,
		     sources_completed = $4,
		     sources_skipped = $5,
		     jobs_created = $6,
		     jobs_updated = $7,
		     jobs_staled = $8,
		     jobs_deleted = $9,
		     errors = $10,
		     completed_at = $11,
		     duration_ms = $12
		 WHERE id = $1
		   AND status = 'running'`,
		id,
		string(f.Status),
		f.SourcesTotal,
		f.SourcesCompleted,
		f.SourcesSkipped,
		f.JobsCreated,
		f.JobsUpdated,
		f.JobsStaled,
		f.JobsDeleted,
		errs,
		completedAt,
		f.DurationMs,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunAlreadyFinalized
	}
	return nil
}

func encodeErrors(errs []string) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("encode run errors: %w", err)
	}
	return b, nil
}

func (r *PostgresSyncRunRepository) Get(ctx context.Context, id uuid.UUID) (syncrun.Run, error) {
	row := r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return syncrun.Run{}, ErrRunNotFound
		}
		return syncrun.Run{}, err
	}
	return run, nil
}

func (r *PostgresSyncRunRepository) ListRecent(ctx context.Context, limit int) ([]syncrun.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return r.list(ctx,
		`SELECT `+runColumns+`
		 FROM sync_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
}

func (r *PostgresSyncRunRepository) LastCompleted(ctx context.Context) (*syncrun.Run, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+runColumns+`
		 FROM sync_runs
		 WHERE status = 'completed'
		 ORDER BY completed_at DESC NULLS LAST
		 LIMIT 1`,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *PostgresSyncRunRepository) ListRunning(ctx context.Context) ([]syncrun.Run, error) {
	return r.list(ctx,
		`SELECT `+runColumns+`
		 FROM sync_runs
		 WHERE status = 'running'
		 ORDER BY started_at DESC`,
	)
}

// MarkAbandoned fails entries left running by a process that died before
// finalizing them.
func (r *PostgresSyncRunRepository) MarkAbandoned(ctx context.Context, startedBefore time.Time) (int64, error) {
	return r.db.Exec(ctx,
		`UPDATE sync_runs
		 SET status = 'failed',
		     errors = COALESCE(errors, '[]'::jsonb) || '["run abandoned before finalization"]'::jsonb,
		     completed_at = now(),
		     duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint
		 WHERE status = 'running'
		   AND started_at < $1`,
		startedBefore,
	)
}

func (r *PostgresSyncRunRepository) list(ctx context.Context, query string, args ...any) ([]syncrun.Run, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]syncrun.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRun(row database.Row) (syncrun.Run, error) {
	var run syncrun.Run
	var typ, status string
	var errs []byte
	if err := row.Scan(
		&run.ID,
		&typ,
		&status,
		&run.Source,
		&run.SourcesTotal,
		&run.SourcesCompleted,
		&run.SourcesSkipped,
		&run.JobsCreated,
		&run.JobsUpdated,
		&run.JobsStaled,
		&run.JobsDeleted,
		&errs,
		&run.StartedAt,
		&run.CompletedAt,
		&run.DurationMs,
	); err != nil {
		return syncrun.Run{}, err
	}
	run.Type = syncrun.Type(typ)
	run.Status = syncrun.Status(status)
	run.Errors = []string{}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &run.Errors); err != nil {
			return syncrun.Run{}, fmt.Errorf("decode run errors: %w", err)
		}
	}
	return run, nil
}
