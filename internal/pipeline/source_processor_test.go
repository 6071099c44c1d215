package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/domain/job"
	"job-sync/internal/source"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, store *memStore, cfg config.SyncConfig, adapters ...*fakeAdapter) *SourceProcessor {
	t.Helper()
	reg := newTestRegistry(t, adapters...)
	return NewSourceProcessor(reg, NewBatchProcessor(store, nil, nil), NewRunState(time.Hour), nil, cfg, nil, nil)
}

func TestSyncAllSources_IsolatesFailures(t *testing.T) {
	store := newMemStore()
	good := &fakeAdapter{name: "good", pages: [][]any{items(numbered("good", 3)...)}}
	broken := &fakeAdapter{name: "broken", err: errBoom}
	exploding := &fakeAdapter{name: "exploding", panic: true}
	p := newTestProcessor(t, store, config.SyncConfig{}, good, broken, exploding)

	results := p.SyncAllSources(context.Background(), uuid.New(), false)
	require.Len(t, results, 3)

	byName := map[string]int{}
	for i, r := range results {
		byName[r.Source] = i
	}
	g := results[byName["good"]]
	assert.True(t, g.Success)
	assert.Equal(t, 3, g.Created)

	b := results[byName["broken"]]
	assert.False(t, b.Success)
	require.NotEmpty(t, b.Errors)
	assert.Contains(t, b.Errors[0], ErrSourceTransient.Error())

	x := results[byName["exploding"]]
	assert.False(t, x.Success)
	assert.Contains(t, strings.Join(x.Errors, " "), "panic")

	assert.Equal(t, 3, store.len())
}

func TestSyncSource_PagesUntilCap(t *testing.T) {
	store := newMemStore()
	all := numbered("paged", 10)
	a := &fakeAdapter{name: "paged", more: true, pages: [][]any{items(all[0:2]...), items(all[2:4]...), items(all[4:6]...), items(all[6:8]...)}}
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(a, source.Descriptor{Name: "paged", MaxPageSize: 2}))
	p := NewSourceProcessor(reg, NewBatchProcessor(store, nil, nil), nil, nil, config.SyncConfig{}, nil, nil)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "paged", MaxJobs: 5})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 5, res.Created)

	reqs := a.pageRequests()
	require.Len(t, reqs, 3)
	assert.Equal(t, 2, reqs[0].Limit)
	assert.Equal(t, 2, reqs[1].Limit)
	assert.Equal(t, 1, reqs[2].Limit)
	assert.Equal(t, 3, reqs[2].Number)
}

func TestSyncSource_StopsOnEmptyOrShortPage(t *testing.T) {
	store := newMemStore()
	a := &fakeAdapter{name: "short", more: true, pages: [][]any{items(numbered("short", 3)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "short"})
	require.True(t, res.Success)
	assert.Len(t, a.pageRequests(), 1, "short page ends pagination")
}

func TestSyncSource_IncrementalCutoff(t *testing.T) {
	store := newMemStore()
	fresh := rec("incr", "1", "Fresh", "Acme")
	undated := rec("incr", "2", "Undated", "Acme")
	undated.PublishedAt = nil
	old := rec("incr", "3", "Old", "Acme")
	old.PublishedAt = daysAgo(10)
	a := &fakeAdapter{name: "incr", pages: [][]any{items(fresh, undated, old)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "incr", Incremental: true, SinceDays: 2})
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)

	reqs := a.pageRequests()
	require.NotEmpty(t, reqs)
	require.NotNil(t, reqs[0].Since)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -2), *reqs[0].Since, time.Minute)

	_, ok := store.get("incr:3")
	assert.False(t, ok)
}

func TestSyncSource_IncrementalStopsOnAllOlderPage(t *testing.T) {
	store := newMemStore()
	older := numbered("olds", 50)
	for i := range older {
		older[i].PublishedAt = daysAgo(30)
	}
	a := &fakeAdapter{name: "olds", more: true, pages: [][]any{items(older...), items(numbered("olds", 50)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "olds", Incremental: true, SinceDays: 2})
	require.True(t, res.Success)
	assert.Len(t, a.pageRequests(), 1)
	assert.Zero(t, res.Created)
}

func TestSyncSource_CountsMalformedAndWarnings(t *testing.T) {
	store := newMemStore()
	salaryMin, salaryMax := 9000, 5000
	inverted := rec("mixed", "1", "Inverted salary", "Acme")
	inverted.SalaryMin, inverted.SalaryMax = &salaryMin, &salaryMax
	noCompany := rec("mixed", "2", "No company", "")
	a := &fakeAdapter{name: "mixed", pages: [][]any{{inverted, malformed{}, noCompany}}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "mixed"})
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Created, "salary warning does not reject")
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, 2, res.Malformed)
}

func TestSyncSource_UnknownSource(t *testing.T) {
	p := newTestProcessor(t, newMemStore(), config.SyncConfig{})
	res := p.SyncSource(context.Background(), SyncOptions{Source: "nope"})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], ErrUnknownSource.Error())
}

func TestSyncSource_BusySourceIsRejected(t *testing.T) {
	a := &fakeAdapter{name: "busy", pages: [][]any{items(numbered("busy", 1)...)}}
	p := newTestProcessor(t, newMemStore(), config.SyncConfig{}, a)

	release, ok := p.State().TryAcquire("busy")
	require.True(t, ok)
	defer release()

	res := p.SyncSource(context.Background(), SyncOptions{Source: "busy"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], ErrSourceBusy.Error())
	assert.Empty(t, a.pageRequests())
}

type stubLocker struct {
	ok       bool
	released int
}

func (l *stubLocker) AcquireSourceLock(ctx context.Context, src string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if !l.ok {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

func TestSyncSource_DistributedLock(t *testing.T) {
	a := &fakeAdapter{name: "locked", pages: [][]any{items(numbered("locked", 1)...)}}
	reg := newTestRegistry(t, a)
	store := newMemStore()

	held := &stubLocker{ok: false}
	p := NewSourceProcessor(reg, NewBatchProcessor(store, nil, nil), nil, held, config.SyncConfig{}, nil, nil)
	res := p.SyncSource(context.Background(), SyncOptions{Source: "locked"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], ErrSourceBusy.Error())

	free := &stubLocker{ok: true}
	p = NewSourceProcessor(reg, NewBatchProcessor(store, nil, nil), nil, free, config.SyncConfig{}, nil, nil)
	res = p.SyncSource(context.Background(), SyncOptions{Source: "locked"})
	assert.True(t, res.Success)
	assert.Equal(t, 1, free.released)
}

func TestSyncAllSources_BudgetExpiry(t *testing.T) {
	store := newMemStore()
	fast := &fakeAdapter{name: "fast", pages: [][]any{items(numbered("fast", 2)...)}}
	slow := &fakeAdapter{name: "slow", block: true}
	p := newTestProcessor(t, store, config.SyncConfig{IncrementalBudget: 100 * time.Millisecond}, fast, slow)

	start := time.Now()
	results := p.SyncAllSources(context.Background(), uuid.New(), true)
	assert.Less(t, time.Since(start), collectGrace+time.Second)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, 2, results[0].Created)
	assert.False(t, results[1].Success)
	require.NotEmpty(t, results[1].Errors)
	assert.Contains(t, results[1].Errors[0], ErrBudgetExceeded.Error())
}

func TestSyncSource_UpsertFailureFailsSource(t *testing.T) {
	store := newMemStore()
	store.failUpsert = func([]job.Record) error { return errors.New("db down") }
	a := &fakeAdapter{name: "dbfail", pages: [][]any{items(numbered("dbfail", 2)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	res := p.SyncSource(context.Background(), SyncOptions{Source: "dbfail"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], ErrPartialBatch.Error())
	assert.Zero(t, res.Created)
}

func TestSyncSource_IdempotentAcrossRuns(t *testing.T) {
	store := newMemStore()
	a := &fakeAdapter{name: "repeat", pages: [][]any{items(numbered("repeat", 4)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	first := p.SyncSource(context.Background(), SyncOptions{Source: "repeat"})
	second := p.SyncSource(context.Background(), SyncOptions{Source: "repeat"})
	assert.Equal(t, 4, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 4, second.Updated)
	assert.Equal(t, 4, store.len())
}

func TestSyncTopSources_UsesConfiguredSubset(t *testing.T) {
	store := newMemStore()
	a := &fakeAdapter{name: "alpha", pages: [][]any{items(numbered("alpha", 1)...)}}
	b := &fakeAdapter{name: "beta", pages: [][]any{items(numbered("beta", 1)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{TopSources: []string{"beta", "missing"}}, a, b)

	results := p.SyncTopSources(context.Background(), uuid.New())
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Source)
	assert.Empty(t, a.pageRequests())

	reqs := b.pageRequests()
	require.Len(t, reqs, 1)
	assert.NotNil(t, reqs[0].Since, "top sources run incrementally")
	assert.Equal(t, 50, reqs[0].Limit)
}

func TestSyncTopSources_IgnoresRepeatedNames(t *testing.T) {
	store := newMemStore()
	a := &fakeAdapter{name: "alpha", pages: [][]any{items(numbered("alpha", 3)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{TopSources: []string{"alpha", "Alpha", " alpha "}}, a)

	assert.Equal(t, []string{"alpha"}, p.TopSources())

	results := p.SyncTopSources(context.Background(), uuid.New())
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Created)
	assert.Zero(t, results[0].Updated)
	assert.Len(t, a.pageRequests(), 1)
}

func TestFanOut_KeepsOneResultPerSubmission(t *testing.T) {
	store := newMemStore()
	a := &fakeAdapter{name: "alpha", pages: [][]any{items(numbered("alpha", 3)...)}}
	p := newTestProcessor(t, store, config.SyncConfig{}, a)

	runID := uuid.New()
	results := p.fanOut(context.Background(), time.Minute, []SyncOptions{
		{Source: "alpha", RunID: runID},
		{Source: "alpha", RunID: runID},
	})
	require.Len(t, results, 2)

	created, updated := 0, 0
	for _, r := range results {
		created += r.Created
		updated += r.Updated
	}
	assert.Equal(t, store.len(), created, "created counts every stored record once")
	assert.LessOrEqual(t, updated, 3)
	assert.NotEqual(t, results[0], results[1])
}
