package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"job-sync/internal/domain/syncrun"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStore keeps status per run id the way the sync_runs table would.
func runStore(db *fakeDB) map[uuid.UUID]string {
	status := map[uuid.UUID]string{}
	db.exec = func(q string, args []any) (int64, error) {
		switch {
		case strings.HasPrefix(q, "insert into sync_runs"):
			status[args[0].(uuid.UUID)] = args[2].(string)
			return 1, nil
		case strings.HasPrefix(q, "update sync_runs"):
			id := args[0].(uuid.UUID)
			if status[id] != "running" {
				return 0, nil
			}
			status[id] = args[1].(string)
			return 1, nil
		}
		return 0, nil
	}
	return status
}

func TestSyncRun_FinalizedExactlyOnce(t *testing.T) {
	db := &fakeDB{}
	status := runStore(db)
	repo := NewPostgresSyncRunRepository(db)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, repo.Create(ctx, syncrun.Run{ID: id, Type: syncrun.TypeHourly, SourcesTotal: 3}))
	assert.Equal(t, "running", status[id])

	err := repo.Finalize(ctx, id, syncrun.Finalization{Status: syncrun.StatusCompleted, DurationMs: 12})
	require.NoError(t, err)
	assert.Equal(t, "completed", status[id])

	err = repo.Finalize(ctx, id, syncrun.Finalization{Status: syncrun.StatusFailed})
	assert.ErrorIs(t, err, ErrRunAlreadyFinalized)
	assert.Equal(t, "completed", status[id])
}

func TestSyncRun_CreateRequiresID(t *testing.T) {
	repo := NewPostgresSyncRunRepository(&fakeDB{})
	assert.Error(t, repo.Create(context.Background(), syncrun.Run{Type: syncrun.TypeDaily}))
}

func TestSyncRun_FinalizeRejectsNonTerminalStatus(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresSyncRunRepository(db)

	err := repo.Finalize(context.Background(), uuid.New(), syncrun.Finalization{Status: syncrun.StatusRunning})
	assert.Error(t, err)
	assert.Empty(t, db.calls)
}

func TestSyncRun_FinalizeEncodesErrors(t *testing.T) {
	db := &fakeDB{exec: func(q string, args []any) (int64, error) { return 1, nil }}
	repo := NewPostgresSyncRunRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Finalize(ctx, uuid.New(), syncrun.Finalization{Status: syncrun.StatusCompleted}))
	assert.Nil(t, db.lastCall().args[9], "no errors stored as NULL")

	require.NoError(t, repo.Finalize(ctx, uuid.New(), syncrun.Finalization{
		Status: syncrun.StatusFailed,
		Errors: []string{"remotive: timeout"},
	}))
	assert.JSONEq(t, `["remotive: timeout"]`, string(db.lastCall().args[9].([]byte)))
}

func TestSyncRun_GetNotFound(t *testing.T) {
	db := &fakeDB{queryRow: func(q string, args []any) fakeRow { return fakeRow{err: pgx.ErrNoRows} }}
	repo := NewPostgresSyncRunRepository(db)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSyncRun_LastCompletedNoneIsNil(t *testing.T) {
	db := &fakeDB{queryRow: func(q string, args []any) fakeRow { return fakeRow{err: pgx.ErrNoRows} }}
	repo := NewPostgresSyncRunRepository(db)

	run, err := repo.LastCompleted(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func runRow(id uuid.UUID, errs []byte) fakeRow {
	started := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	dur := int64(60000)
	return fakeRow{vals: []any{
		id, "daily", "completed", "",
		9, 8, 1,
		120, 40, 5, 2,
		errs, started, &completed, &dur,
	}}
}

func TestSyncRun_ListRecentDecodesRows(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	db := &fakeDB{query: func(q string, args []any) ([]fakeRow, error) {
		return []fakeRow{
			runRow(a, []byte(`["usajobs: status 503"]`)),
			runRow(b, nil),
		}, nil
	}}
	repo := NewPostgresSyncRunRepository(db)

	runs, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 10, db.lastCall().args[0], "default limit")

	assert.Equal(t, syncrun.TypeDaily, runs[0].Type)
	assert.Equal(t, syncrun.StatusCompleted, runs[0].Status)
	assert.Equal(t, []string{"usajobs: status 503"}, runs[0].Errors)
	assert.Equal(t, 120, runs[0].JobsCreated)
	assert.Equal(t, int64(60000), *runs[0].DurationMs)
	assert.Equal(t, []string{}, runs[1].Errors)
}

func TestSyncRun_MarkAbandoned(t *testing.T) {
	db := &fakeDB{exec: func(q string, args []any) (int64, error) { return 1, nil }}
	repo := NewPostgresSyncRunRepository(db)

	n, err := repo.MarkAbandoned(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, db.lastCall().query, "where status = 'running'")
}
