package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/database"
	"job-sync/internal/domain/job"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrEmptyUpdate = errors.New("empty update")
)

// UpsertResult counts rows written by one committed upsert batch.
type UpsertResult struct {
	Created int
	Updated int
}

// DedupCandidate is one member of a duplicate group as read from the store.
type DedupCandidate struct {
	ID           uuid.UUID
	GroupKey     string
	Source       string
	ExternalID   string
	Title        string
	Company      string
	PublishedAt  *time.Time
	UpdatedAt    time.Time
	HasRelations bool
}

// DuplicateFlag records a relationship-bearing duplicate kept for review.
type DuplicateFlag struct {
	JobID      uuid.UUID
	SurvivorID uuid.UUID
	Pass       string
	GroupKey   string
	Reason     string
}

// JobUpdate lists the fields an operator may change in bulk. Nil means
// unchanged.
type JobUpdate struct {
	Category        *string
	IsActive        *bool
	SyncStatus      *job.SyncStatus
	ExperienceLevel *job.ExperienceLevel
	EmploymentType  *job.EmploymentType
}

func (u JobUpdate) Empty() bool {
	return u.Category == nil && u.IsActive == nil && u.SyncStatus == nil && u.ExperienceLevel == nil && u.EmploymentType == nil
}

type RelationCount struct {
	SavedJobs    int
	Applications int
}

func (c RelationCount) Any() bool { return c.SavedJobs > 0 || c.Applications > 0 }

type JobRepository interface {
	UpsertBatch(ctx context.Context, records []job.Record) (UpsertResult, error)

	MarkStale(ctx context.Context, publishedBefore time.Time) (int64, error)
	DeleteExpired(ctx context.Context, staleBefore time.Time) (int64, error)
	DeactivateExpiredWithRelations(ctx context.Context, staleBefore time.Time) (int64, error)
	ReactivateRecent(ctx context.Context, syncedSince time.Time) (int64, error)
	DeactivateSource(ctx context.Context, source string) (int64, error)

	ListExactDuplicates(ctx context.Context) ([]DedupCandidate, error)
	ListContentDuplicates(ctx context.Context) ([]DedupCandidate, error)
	DeleteWithoutRelations(ctx context.Context, ids []uuid.UUID) (int64, error)
	FlagDuplicates(ctx context.Context, flags []DuplicateFlag) (int64, error)

	BulkUpdate(ctx context.Context, ids []uuid.UUID, u JobUpdate) (int64, error)
	RelationCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RelationCount, error)
}

type PostgresJobRepository struct {
	db database.DB
}

func NewPostgresJobRepository(db database.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

const upsertJobSQL = `INSERT INTO jobs (
	id, source, external_id, title, company, company_logo, company_url,
	category, location, location_type, experience_level, employment_type,
	salary_min, salary_max, salary_currency, salary_period,
	description, description_html, requirements, benefits, tags,
	apply_url, published_at, expires_at, fetched_at, last_synced_at,
	sync_status, is_active, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14, $15, $16,
	$17, $18, $19, $20, $21,
	$22, $23, $24, $25, $26,
	'active', true, now(), now()
)
ON CONFLICT (source, external_id) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	company_logo = EXCLUDED.company_logo,
	company_url = EXCLUDED.company_url,
	category = EXCLUDED.category,
	location = EXCLUDED.location,
	location_type = EXCLUDED.location_type,
	experience_level = EXCLUDED.experience_level,
	employment_type = EXCLUDED.employment_type,
	salary_min = EXCLUDED.salary_min,
	salary_max = EXCLUDED.salary_max,
	salary_currency = EXCLUDED.salary_currency,
	salary_period = EXCLUDED.salary_period,
	description = EXCLUDED.description,
	description_html = EXCLUDED.description_html,
	requirements = EXCLUDED.requirements,
	benefits = EXCLUDED.benefits,
	tags = EXCLUDED.tags,
	apply_url = EXCLUDED.apply_url,
	published_at = EXCLUDED.published_at,
	expires_at = EXCLUDED.expires_at,
	fetched_at = EXCLUDED.fetched_at,
	last_synced_at = EXCLUDED.last_synced_at,
	updated_at = now()
RETURNING (xmax = 0) AS inserted`

// UpsertBatch writes records in one transaction keyed by (source,
// external_id). Lifecycle columns are left alone on conflict. Either every
// record commits or none does.
func (r *PostgresJobRepository) UpsertBatch(ctx context.Context, records []job.Record) (UpsertResult, error) {
	var res UpsertResult
	if len(records) == 0 {
		return res, nil
	}
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		for _, rec := range records {
			var inserted bool
			if err := tx.QueryRow(ctx, upsertJobSQL, upsertArgs(rec)...).Scan(&inserted); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.Key(), err)
			}
			if inserted {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func upsertArgs(rec job.Record) []any {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	fetchedAt := rec.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}
	syncedAt := rec.LastSyncedAt
	if syncedAt.IsZero() {
		syncedAt = now
	}
	locationType := rec.LocationType
	if !locationType.Valid() {
		locationType = job.LocationOnsite
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		id,
		rec.Source,
		rec.ExternalID,
		rec.Title,
		rec.Company,
		nullableText(rec.CompanyLogo),
		nullableText(rec.CompanyURL),
		nullableText(rec.Category),
		nullableText(rec.Location),
		string(locationType),
		nullableText(string(rec.ExperienceLevel)),
		nullableText(string(rec.EmploymentType)),
		rec.SalaryMin,
		rec.SalaryMax,
		nullableText(rec.SalaryCurrency),
		nullableText(string(rec.SalaryPeriod)),
		rec.Description,
		nullableText(rec.DescriptionHTML),
		nullableText(rec.Requirements),
		nullableText(rec.Benefits),
		tags,
		nullableText(rec.ApplyURL),
		rec.PublishedAt,
		rec.ExpiresAt,
		fetchedAt,
		syncedAt,
	}
}

func (r *PostgresJobRepository) MarkStale(ctx context.Context, publishedBefore time.Time) (int64, error) {
	return r.db.Exec(ctx,
		`UPDATE jobs
		 SET sync_status = 'stale', stale_at = now()
		 WHERE sync_status = 'active'
		   AND published_at < $1`,
		publishedBefore,
	)
}

const noRelationsClause = `NOT EXISTS (SELECT 1 FROM saved_jobs s WHERE s.job_id = j.id)
		   AND NOT EXISTS (SELECT 1 FROM job_applications a WHERE a.job_id = j.id)`

const hasRelationsClause = `(EXISTS (SELECT 1 FROM saved_jobs s WHERE s.job_id = j.id)
		   OR EXISTS (SELECT 1 FROM job_applications a WHERE a.job_id = j.id))`

// DeleteExpired removes stale records aged past staleBefore that no user
// data references.
func (r *PostgresJobRepository) DeleteExpired(ctx context.Context, staleBefore time.Time) (int64, error) {
	return r.db.Exec(ctx,
		`DELETE FROM jobs j
		 WHERE j.sync_status = 'stale'
		   AND COALESCE(j.stale_at, j.published_at) < $1
		   AND `+noRelationsClause,
		staleBefore,
	)
}

// DeactivateExpiredWithRelations hides aged stale records that cannot be
// deleted. Their status stays stale.
func (r *PostgresJobRepository) DeactivateExpiredWithRelations(ctx context.Context, staleBefore time.Time) (int64, error) {
	return r.db.Exec(ctx,
		`UPDATE jobs j
		 SET is_active = false
		 WHERE j.sync_status = 'stale'
		   AND j.is_active = true
		   AND COALESCE(j.stale_at, j.published_at) < $1
		   AND `+hasRelationsClause,
		staleBefore,
	)
}

func (r *PostgresJobRepository) ReactivateRecent(ctx context.Context, syncedSince time.Time) (int64, error) {
	return r.db.Exec(ctx,
		`UPDATE jobs
		 SET sync_status = 'active', stale_at = NULL, is_active = true, updated_at = now()
		 WHERE sync_status = 'stale'
		   AND last_synced_at >= $1`,
		syncedSince,
	)
}

func (r *PostgresJobRepository) DeactivateSource(ctx context.Context, source string) (int64, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return 0, fmt.Errorf("empty source")
	}
	return r.db.Exec(ctx,
		`UPDATE jobs
		 SET sync_status = 'expired', is_active = false, updated_at = now()
		 WHERE source = $1
		   AND (sync_status <> 'expired' OR is_active = true)`,
		source,
	)
}

func nullableText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
