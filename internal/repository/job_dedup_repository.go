package repository

import (
	"context"
	"fmt"
	"strings"

	"job-sync/internal/database"
	"job-sync/internal/domain/job"

	"github.com/google/uuid"
)

const candidateColumns = `j.id, j.source, j.external_id, j.title, j.company, j.published_at, j.updated_at,
	       ` + hasRelationsClause + ` AS has_relations`

// ListExactDuplicates returns every record sharing its (source, external_id)
// with another record, grouped by that key.
func (r *PostgresJobRepository) ListExactDuplicates(ctx context.Context) ([]DedupCandidate, error) {
	return r.listCandidates(ctx,
		`SELECT j.source || ':' || j.external_id AS group_key, `+candidateColumns+`
		 FROM jobs j
		 JOIN (
			SELECT source, external_id
			FROM jobs
			GROUP BY source, external_id
			HAVING COUNT(*) > 1
		 ) d ON d.source = j.source AND d.external_id = j.external_id
		 ORDER BY group_key ASC, j.id ASC`,
	)
}

// ListContentDuplicates returns every record whose normalized title and
// company match another record's.
func (r *PostgresJobRepository) ListContentDuplicates(ctx context.Context) ([]DedupCandidate, error) {
	return r.listCandidates(ctx,
		`SELECT lower(btrim(j.title)) || '|' || lower(btrim(j.company)) AS group_key, `+candidateColumns+`
		 FROM jobs j
		 JOIN (
			SELECT lower(btrim(title)) AS t, lower(btrim(company)) AS c
			FROM jobs
			GROUP BY 1, 2
			HAVING COUNT(*) > 1
		 ) d ON d.t = lower(btrim(j.title)) AND d.c = lower(btrim(j.company))
		 ORDER BY group_key ASC, j.id ASC`,
	)
}

func (r *PostgresJobRepository) listCandidates(ctx context.Context, query string) ([]DedupCandidate, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DedupCandidate, 0)
	for rows.Next() {
		var c DedupCandidate
		if err := rows.Scan(
			&c.GroupKey,
			&c.ID,
			&c.Source,
			&c.ExternalID,
			&c.Title,
			&c.Company,
			&c.PublishedAt,
			&c.UpdatedAt,
			&c.HasRelations,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWithoutRelations deletes the given records, re-checking at delete
// time that none has gained a saved-job or application row.
func (r *PostgresJobRepository) DeleteWithoutRelations(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.db.Exec(ctx,
		`DELETE FROM jobs j
		 WHERE j.id = ANY($1::uuid[])
		   AND `+noRelationsClause,
		ids,
	)
}

func (r *PostgresJobRepository) FlagDuplicates(ctx context.Context, flags []DuplicateFlag) (int64, error) {
	if len(flags) == 0 {
		return 0, nil
	}
	var total int64
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		for _, f := range flags {
			n, err := tx.Exec(ctx,
				`INSERT INTO job_duplicate_flags (job_id, survivor_id, pass, group_key, reason, flagged_at)
				 VALUES ($1, $2, $3, $4, $5, now())
				 ON CONFLICT (job_id, survivor_id) DO NOTHING`,
				f.JobID, f.SurvivorID, f.Pass, f.GroupKey, nullableText(f.Reason),
			)
			if err != nil {
				return fmt.Errorf("flag %s: %w", f.JobID, err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// BulkUpdate applies u to every listed record. Only the columns named by
// JobUpdate can be written.
func (r *PostgresJobRepository) BulkUpdate(ctx context.Context, ids []uuid.UUID, u JobUpdate) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if u.Empty() {
		return 0, ErrEmptyUpdate
	}

	sets := make([]string, 0, 6)
	args := []any{ids}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Category != nil {
		add("category", nullableText(*u.Category))
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	if u.SyncStatus != nil {
		add("sync_status", string(*u.SyncStatus))
		switch *u.SyncStatus {
		case job.StatusStale:
			sets = append(sets, "stale_at = COALESCE(stale_at, now())")
		case job.StatusActive:
			sets = append(sets, "stale_at = NULL")
		}
	}
	if u.ExperienceLevel != nil {
		add("experience_level", nullableText(string(*u.ExperienceLevel)))
	}
	if u.EmploymentType != nil {
		add("employment_type", string(*u.EmploymentType))
	}
	sets = append(sets, "updated_at = now()")

	return r.db.Exec(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ANY($1::uuid[])`,
		args...,
	)
}

func (r *PostgresJobRepository) RelationCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RelationCount, error) {
	out := make(map[uuid.UUID]RelationCount, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT j.id,
		        (SELECT COUNT(1) FROM saved_jobs s WHERE s.job_id = j.id),
		        (SELECT COUNT(1) FROM job_applications a WHERE a.job_id = j.id)
		 FROM jobs j
		 WHERE j.id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var c RelationCount
		if err := rows.Scan(&id, &c.SavedJobs, &c.Applications); err != nil {
			return nil, err
		}
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
