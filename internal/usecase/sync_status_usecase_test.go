package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"job-sync/internal/domain"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"
	"job-sync/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunRepo struct {
	recent  []syncrun.Run
	last    *syncrun.Run
	running []syncrun.Run
	runs    map[uuid.UUID]syncrun.Run
	err     error
	limit   int
}

func (m *mockRunRepo) Create(ctx context.Context, run syncrun.Run) error { return nil }
func (m *mockRunRepo) Finalize(ctx context.Context, id uuid.UUID, f syncrun.Finalization) error {
	return nil
}

func (m *mockRunRepo) Get(ctx context.Context, id uuid.UUID) (syncrun.Run, error) {
	if m.err != nil {
		return syncrun.Run{}, m.err
	}
	r, ok := m.runs[id]
	if !ok {
		return syncrun.Run{}, repository.ErrRunNotFound
	}
	return r, nil
}

func (m *mockRunRepo) ListRecent(ctx context.Context, limit int) ([]syncrun.Run, error) {
	m.limit = limit
	return m.recent, m.err
}

func (m *mockRunRepo) LastCompleted(ctx context.Context) (*syncrun.Run, error) {
	return m.last, m.err
}

func (m *mockRunRepo) ListRunning(ctx context.Context) ([]syncrun.Run, error) {
	return m.running, m.err
}

func (m *mockRunRepo) MarkAbandoned(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubState []pipeline.SourceState

func (s stubState) Snapshot() []pipeline.SourceState { return s }

func runAt(status syncrun.Status, started time.Time) syncrun.Run {
	return syncrun.Run{ID: uuid.New(), Type: syncrun.TypeHourly, Status: status, StartedAt: started}
}

func TestComputeHealth(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ok, bad := syncrun.StatusCompleted, syncrun.StatusFailed

	cases := []struct {
		name   string
		runs   []syncrun.Run
		status HealthStatus
		rate   string
	}{
		{"no history", nil, HealthUnknown, ""},
		{"recent and successful", []syncrun.Run{
			runAt(ok, now.Add(-time.Hour)), runAt(ok, now.Add(-2*time.Hour)), runAt(ok, now.Add(-3*time.Hour)),
			runAt(ok, now.Add(-4*time.Hour)), runAt(bad, now.Add(-5*time.Hour)), runAt(bad, now.Add(-6*time.Hour)),
		}, HealthHealthy, "4/5"},
		{"successful but silent", []syncrun.Run{runAt(ok, now.Add(-30 * time.Hour))}, HealthDegraded, "1/1"},
		{"failing but recent", []syncrun.Run{runAt(bad, now.Add(-time.Hour)), runAt(bad, now.Add(-2*time.Hour))}, HealthDegraded, "0/2"},
		{"failing and silent", []syncrun.Run{runAt(bad, now.Add(-72*time.Hour)), runAt(ok, now.Add(-80*time.Hour))}, HealthUnhealthy, "1/2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := computeHealth(tc.runs, now)
			assert.Equal(t, tc.status, h.Status)
			assert.Equal(t, tc.rate, h.SuccessRate)
		})
	}
}

func TestSyncStatus_GetStatus(t *testing.T) {
	now := time.Now().UTC()
	last := runAt(syncrun.StatusCompleted, now.Add(-time.Hour))
	runs := &mockRunRepo{recent: []syncrun.Run{last}, last: &last}
	jobs := &mockQueryRepo{stats: domain.JobStats{TotalJobs: 12, ActiveJobs: 10}}
	state := stubState{{Source: "remotive", Phase: pipeline.PhaseCompleted}}

	uc := NewSyncStatusUsecase(runs, jobs, state, stubPinger{}, stubPinger{err: errors.New("down")}, nil)
	view, err := uc.GetStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, runs.limit)
	assert.Equal(t, HealthHealthy, view.Health.Status)
	assert.Equal(t, 12, view.Jobs.TotalJobs)
	require.NotNil(t, view.LastCompleted)
	assert.Equal(t, last.ID, view.LastCompleted.ID)
	assert.Equal(t, []syncrun.Run{}, view.Running)
	assert.Len(t, view.LiveSources, 1)
	assert.True(t, view.DatabaseHealthy)
	assert.False(t, view.RedisHealthy)
}

func TestSyncStatus_GetStatusFailure(t *testing.T) {
	uc := NewSyncStatusUsecase(&mockRunRepo{err: errors.New("boom")}, &mockQueryRepo{}, nil, nil, nil, nil)
	_, err := uc.GetStatus(context.Background())
	assert.ErrorIs(t, err, ErrInternal)
}

func TestSyncStatus_GetRun(t *testing.T) {
	r := runAt(syncrun.StatusCompleted, time.Now())
	uc := NewSyncStatusUsecase(&mockRunRepo{runs: map[uuid.UUID]syncrun.Run{r.ID: r}}, &mockQueryRepo{}, nil, nil, nil, nil)

	got, err := uc.GetRun(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = uc.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = uc.GetRun(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
