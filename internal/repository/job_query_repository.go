package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"job-sync/internal/database"
	"job-sync/internal/domain"
	"job-sync/internal/domain/job"
)

// ListFilter narrows the downstream read query. Zero values mean no filter.
type ListFilter struct {
	Category         string
	Source           string
	LocationType     string
	ExperienceLevel  string
	EmploymentType   string
	SalaryMin        *int
	SalaryMax        *int
	PostedWithinDays int
	Query            string

	Limit  int
	Offset int
}

type JobQueryRepository interface {
	List(ctx context.Context, f ListFilter) ([]job.Record, int, error)
	Stats(ctx context.Context) (domain.JobStats, error)
	CleanupStats(ctx context.Context, staleDays int) (domain.CleanupStats, error)
}

type PostgresJobQueryRepository struct {
	db database.DB
}

func NewPostgresJobQueryRepository(db database.DB) *PostgresJobQueryRepository {
	return &PostgresJobQueryRepository{db: db}
}

const listColumns = `id, source, external_id, title, company,
	COALESCE(company_logo, ''), COALESCE(company_url, ''), COALESCE(category, ''), COALESCE(location, ''),
	location_type, COALESCE(experience_level, ''), COALESCE(employment_type, ''),
	salary_min, salary_max, COALESCE(salary_currency, ''), COALESCE(salary_period, ''),
	description, COALESCE(requirements, ''), COALESCE(benefits, ''), tags, COALESCE(apply_url, ''),
	published_at, expires_at, fetched_at, last_synced_at, sync_status, stale_at, is_active,
	created_at, updated_at`

// buildListWhere renders the filter into a WHERE clause. Only active records
// in active or stale status are visible.
func buildListWhere(f ListFilter) (string, []any) {
	where := []string{
		"is_active = true",
		"sync_status IN ('active', 'stale')",
	}
	args := make([]any, 0, 8)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if v := strings.TrimSpace(f.Category); v != "" {
		add("category = $%d", v)
	}
	if v := strings.ToLower(strings.TrimSpace(f.Source)); v != "" {
		add("source = $%d", v)
	}
	if v := strings.TrimSpace(f.LocationType); v != "" {
		add("location_type = $%d", v)
	}
	if v := strings.TrimSpace(f.ExperienceLevel); v != "" {
		add("experience_level = $%d", v)
	}
	if v := strings.TrimSpace(f.EmploymentType); v != "" {
		add("employment_type = $%d", v)
	}
	// Salary filters match on range overlap.
	if f.SalaryMin != nil {
		add("COALESCE(salary_max, salary_min) >= $%d", *f.SalaryMin)
	}
	if f.SalaryMax != nil {
		add("COALESCE(salary_min, salary_max) <= $%d", *f.SalaryMax)
	}
	if f.PostedWithinDays > 0 {
		add("published_at >= $%d", time.Now().UTC().AddDate(0, 0, -f.PostedWithinDays))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR company ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	return strings.Join(where, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *PostgresJobQueryRepository) List(ctx context.Context, f ListFilter) ([]job.Record, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := buildListWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s
		 FROM jobs
		 WHERE %s
		 ORDER BY published_at DESC NULLS LAST, id DESC
		 LIMIT $%d OFFSET $%d`, listColumns, where, len(args)+1, len(args)+2),
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]job.Record, 0, f.Limit)
	for rows.Next() {
		var rec job.Record
		var locationType, experience, employment, period, status string
		if err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.ExternalID,
			&rec.Title,
			&rec.Company,
			&rec.CompanyLogo,
			&rec.CompanyURL,
			&rec.Category,
			&rec.Location,
			&locationType,
			&experience,
			&employment,
			&rec.SalaryMin,
			&rec.SalaryMax,
			&rec.SalaryCurrency,
			&period,
			&rec.Description,
			&rec.Requirements,
			&rec.Benefits,
			&rec.Tags,
			&rec.ApplyURL,
			&rec.PublishedAt,
			&rec.ExpiresAt,
			&rec.FetchedAt,
			&rec.LastSyncedAt,
			&status,
			&rec.StaleAt,
			&rec.IsActive,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		rec.LocationType = job.LocationType(locationType)
		rec.ExperienceLevel = job.ExperienceLevel(experience)
		rec.EmploymentType = job.EmploymentType(employment)
		rec.SalaryPeriod = job.SalaryPeriod(period)
		rec.SyncStatus = job.SyncStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresJobQueryRepository) Stats(ctx context.Context) (domain.JobStats, error) {
	var st domain.JobStats
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(1),
		        COUNT(1) FILTER (WHERE sync_status = 'active' AND is_active = true),
		        COUNT(1) FILTER (WHERE sync_status = 'stale'),
		        COUNT(1) FILTER (WHERE sync_status = 'expired'),
		        COUNT(1) FILTER (WHERE created_at >= date_trunc('day', now()))
		 FROM jobs`,
	)
	if err := row.Scan(&st.TotalJobs, &st.ActiveJobs, &st.StaleJobs, &st.ExpiredJobs, &st.JobsToday); err != nil {
		return domain.JobStats{}, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT source,
		        COUNT(1),
		        COUNT(1) FILTER (WHERE sync_status = 'active' AND is_active = true),
		        MAX(last_synced_at),
		        MAX(published_at)
		 FROM jobs
		 GROUP BY source
		 ORDER BY source ASC`,
	)
	if err != nil {
		return domain.JobStats{}, err
	}
	defer rows.Close()

	st.Sources = make([]domain.SourceStat, 0)
	for rows.Next() {
		var s domain.SourceStat
		if err := rows.Scan(&s.Source, &s.TotalJobs, &s.ActiveJobs, &s.LastSynced, &s.LastJobTime); err != nil {
			return domain.JobStats{}, err
		}
		st.Sources = append(st.Sources, s)
	}
	if err := rows.Err(); err != nil {
		return domain.JobStats{}, err
	}
	return st, nil
}

func (r *PostgresJobQueryRepository) CleanupStats(ctx context.Context, staleDays int) (domain.CleanupStats, error) {
	if staleDays <= 0 {
		staleDays = 60
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -staleDays)
	st := domain.CleanupStats{StaleDays: staleDays}
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(1),
		        COUNT(1) FILTER (WHERE j.sync_status = 'active'),
		        COUNT(1) FILTER (WHERE j.sync_status = 'stale'),
		        COUNT(1) FILTER (WHERE j.sync_status = 'expired'),
		        COUNT(1) FILTER (WHERE j.published_at < $1),
		        COUNT(1) FILTER (WHERE j.sync_status = 'stale' AND `+noRelationsClause+`)
		 FROM jobs j`,
		cutoff,
	)
	if err := row.Scan(&st.Total, &st.Active, &st.Stale, &st.Expired, &st.OlderThanStale, &st.StaleWithoutRels); err != nil {
		return domain.CleanupStats{}, err
	}
	return st, nil
}
