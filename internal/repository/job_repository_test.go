package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"job-sync/internal/domain/job"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(source, extID string) job.Record {
	return job.Record{
		Source:         source,
		ExternalID:     extID,
		Title:          "Backend Engineer",
		Company:        "Acme",
		LocationType:   job.LocationRemote,
		EmploymentType: job.EmploymentFullTime,
		Description:    "Build things",
		SyncStatus:     job.StatusActive,
		IsActive:       true,
	}
}

// upsertStore emulates the (source, external_id) conflict target.
func upsertStore(db *fakeDB, failOn string) map[string]string {
	keys := map[string]string{}
	db.queryRow = func(q string, args []any) fakeRow {
		if !strings.HasPrefix(q, "insert into jobs") {
			return fakeRow{err: errors.New("unexpected query")}
		}
		key := args[1].(string) + ":" + args[2].(string)
		if key == failOn {
			return fakeRow{err: errors.New("constraint violated")}
		}
		_, exists := keys[key]
		keys[key] = args[3].(string)
		return fakeRow{vals: []any{!exists}}
	}
	return keys
}

func TestUpsertBatch_IsIdempotent(t *testing.T) {
	db := &fakeDB{}
	keys := upsertStore(db, "")
	repo := NewPostgresJobRepository(db)
	ctx := context.Background()

	batch := []job.Record{sampleRecord("remotive", "1"), sampleRecord("remotive", "2")}

	first, err := repo.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Created: 2}, first)

	second, err := repo.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 2}, second)

	assert.Len(t, keys, 2)
	assert.Equal(t, 2, db.commits)
	assert.Equal(t, 0, db.rollbacks)
}

func TestUpsertBatch_LastWriteWins(t *testing.T) {
	db := &fakeDB{}
	keys := upsertStore(db, "")
	repo := NewPostgresJobRepository(db)

	a := sampleRecord("jobicy", "7")
	_, err := repo.UpsertBatch(context.Background(), []job.Record{a})
	require.NoError(t, err)

	a.Title = "Senior Backend Engineer"
	res, err := repo.UpsertBatch(context.Background(), []job.Record{a})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "Senior Backend Engineer", keys["jobicy:7"])
}

func TestUpsertBatch_RollsBackWholeBatchOnError(t *testing.T) {
	db := &fakeDB{}
	upsertStore(db, "remotive:2")
	repo := NewPostgresJobRepository(db)

	res, err := repo.UpsertBatch(context.Background(), []job.Record{
		sampleRecord("remotive", "1"),
		sampleRecord("remotive", "2"),
		sampleRecord("remotive", "3"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remotive:2")
	assert.Equal(t, UpsertResult{}, res)
	assert.Equal(t, 0, db.commits)
	assert.Equal(t, 1, db.rollbacks)
}

func TestUpsertBatch_DoesNotResetLifecycleOnConflict(t *testing.T) {
	conflict := upsertJobSQL[strings.Index(upsertJobSQL, "ON CONFLICT"):]
	assert.NotContains(t, conflict, "sync_status")
	assert.NotContains(t, conflict, "is_active")
	assert.NotContains(t, conflict, "stale_at")
	assert.Contains(t, conflict, "last_synced_at = EXCLUDED.last_synced_at")
}

func TestUpsertArgs_DefaultsAndNulls(t *testing.T) {
	rec := sampleRecord("remoteok", "9")
	rec.LocationType = ""
	rec.Tags = nil
	args := upsertArgs(rec)

	require.Len(t, args, 26)
	assert.NotEqual(t, uuid.Nil, args[0].(uuid.UUID))
	assert.Nil(t, args[5], "empty company logo stored as NULL")
	assert.Equal(t, "onsite", args[9])
	assert.Equal(t, []string{}, args[20])
	assert.False(t, args[24].(time.Time).IsZero())
	assert.False(t, args[25].(time.Time).IsZero())
}

func TestMarkStale_OnlyTouchesActive(t *testing.T) {
	db := &fakeDB{exec: func(q string, args []any) (int64, error) { return 3, nil }}
	repo := NewPostgresJobRepository(db)
	cutoff := time.Now().AddDate(0, 0, -60)

	n, err := repo.MarkStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	c := db.lastCall()
	assert.Contains(t, c.query, "where sync_status = 'active'")
	assert.Contains(t, c.query, "published_at < $1")
	assert.NotContains(t, c.query, "updated_at")
	assert.Equal(t, cutoff, c.args[0])
}

func TestDeleteExpired_ChecksRelationships(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresJobRepository(db)

	_, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)

	c := db.lastCall()
	assert.True(t, strings.HasPrefix(c.query, "delete from jobs"))
	assert.Contains(t, c.query, "sync_status = 'stale'")
	assert.Contains(t, c.query, "not exists (select 1 from saved_jobs")
	assert.Contains(t, c.query, "not exists (select 1 from job_applications")
}

func TestDeactivateExpiredWithRelations_KeepsRow(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresJobRepository(db)

	_, err := repo.DeactivateExpiredWithRelations(context.Background(), time.Now())
	require.NoError(t, err)

	c := db.lastCall()
	assert.True(t, strings.HasPrefix(c.query, "update jobs"))
	assert.Contains(t, c.query, "set is_active = false")
	assert.Contains(t, c.query, "exists (select 1 from saved_jobs")
}

func TestDeactivateSource_RejectsEmpty(t *testing.T) {
	repo := NewPostgresJobRepository(&fakeDB{})
	_, err := repo.DeactivateSource(context.Background(), "  ")
	assert.Error(t, err)
}

func TestDeleteWithoutRelations_NoIDsNoQuery(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresJobRepository(db)

	n, err := repo.DeleteWithoutRelations(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.calls)
}

func TestBulkUpdate_OnlyNamedColumns(t *testing.T) {
	db := &fakeDB{exec: func(q string, args []any) (int64, error) { return 2, nil }}
	repo := NewPostgresJobRepository(db)

	category := "data"
	status := job.StatusStale
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	n, err := repo.BulkUpdate(context.Background(), ids, JobUpdate{Category: &category, SyncStatus: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	c := db.lastCall()
	assert.Equal(t, "update jobs set category = $2, sync_status = $3, stale_at = coalesce(stale_at, now()), updated_at = now() where id = any($1::uuid[])", c.query)
	require.Len(t, c.args, 3)
	assert.Equal(t, ids, c.args[0])
	assert.Equal(t, "data", c.args[1])
	assert.Equal(t, "stale", c.args[2])
}

func TestBulkUpdate_EmptyUpdateRejected(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresJobRepository(db)

	_, err := repo.BulkUpdate(context.Background(), []uuid.UUID{uuid.New()}, JobUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
	assert.Empty(t, db.calls)
}

func TestFlagDuplicates_IsIdempotentInsert(t *testing.T) {
	db := &fakeDB{exec: func(q string, args []any) (int64, error) { return 1, nil }}
	repo := NewPostgresJobRepository(db)

	n, err := repo.FlagDuplicates(context.Background(), []DuplicateFlag{
		{JobID: uuid.New(), SurvivorID: uuid.New(), Pass: "content", GroupKey: "a|b"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, db.lastCall().query, "on conflict (job_id, survivor_id) do nothing")
	assert.Equal(t, 1, db.commits)
}

func TestListContentDuplicates_ScansCandidates(t *testing.T) {
	id := uuid.New()
	published := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{query: func(q string, args []any) ([]fakeRow, error) {
		return []fakeRow{{vals: []any{"engineer|acme", id, "remotive", "1", "Engineer", "Acme", &published, updated, true}}}, nil
	}}
	repo := NewPostgresJobRepository(db)

	got, err := repo.ListContentDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "engineer|acme", got[0].GroupKey)
	assert.Equal(t, id, got[0].ID)
	assert.True(t, got[0].HasRelations)
	assert.Equal(t, published, *got[0].PublishedAt)
}

func TestRelationCounts(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{query: func(q string, args []any) ([]fakeRow, error) {
		return []fakeRow{{vals: []any{id, 2, 0}}}, nil
	}}
	repo := NewPostgresJobRepository(db)

	got, err := repo.RelationCounts(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, RelationCount{SavedJobs: 2}, got[id])
	assert.True(t, got[id].Any())
}
