package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"job-sync/internal/domain/job"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/repository"
	"job-sync/internal/source"

	"github.com/google/uuid"
)

// memStore is an in-memory jobs table keyed by (source, external_id), with
// a relationship set standing in for saved_jobs and job_applications.
type memStore struct {
	mu sync.Mutex

	jobs      map[string]*job.Record
	relations map[uuid.UUID]bool
	flags     []repository.DuplicateFlag

	failUpsert  func(batch []job.Record) error
	upsertCalls int
	now         func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      map[string]*job.Record{},
		relations: map[uuid.UUID]bool{},
		now:       time.Now,
	}
}

func (s *memStore) UpsertBatch(ctx context.Context, records []job.Record) (repository.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if err := ctx.Err(); err != nil {
		return repository.UpsertResult{}, err
	}
	if s.failUpsert != nil {
		if err := s.failUpsert(records); err != nil {
			return repository.UpsertResult{}, err
		}
	}
	var res repository.UpsertResult
	now := s.now()
	for _, r := range records {
		if cur, ok := s.jobs[r.Key()]; ok {
			id, status, active, staleAt, created := cur.ID, cur.SyncStatus, cur.IsActive, cur.StaleAt, cur.CreatedAt
			*cur = r
			cur.ID, cur.SyncStatus, cur.IsActive, cur.StaleAt, cur.CreatedAt = id, status, active, staleAt, created
			cur.LastSyncedAt = now
			cur.UpdatedAt = now
			res.Updated++
			continue
		}
		rec := r
		rec.ID = uuid.New()
		rec.SyncStatus = job.StatusActive
		rec.IsActive = true
		rec.CreatedAt = now
		rec.UpdatedAt = now
		rec.LastSyncedAt = now
		s.jobs[r.Key()] = &rec
		res.Created++
	}
	return res, nil
}

func (s *memStore) MarkStale(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for _, r := range s.jobs {
		if r.SyncStatus == job.StatusActive && r.PublishedAt != nil && r.PublishedAt.Before(before) {
			r.SyncStatus = job.StatusStale
			r.StaleAt = &now
			n++
		}
	}
	return n, nil
}

func agedOut(r *job.Record, before time.Time) bool {
	ref := r.StaleAt
	if ref == nil {
		ref = r.PublishedAt
	}
	return r.SyncStatus == job.StatusStale && ref != nil && ref.Before(before)
}

func (s *memStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.jobs {
		if agedOut(r, before) && !s.relations[r.ID] {
			delete(s.jobs, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeactivateExpiredWithRelations(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.jobs {
		if agedOut(r, before) && s.relations[r.ID] && r.IsActive {
			r.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) ReactivateRecent(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.jobs {
		if r.SyncStatus == job.StatusStale && !r.LastSyncedAt.Before(since) {
			r.SyncStatus = job.StatusActive
			r.StaleAt = nil
			r.IsActive = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeactivateSource(ctx context.Context, src string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.jobs {
		if r.Source == src {
			r.SyncStatus = job.StatusExpired
			r.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListExactDuplicates(ctx context.Context) ([]repository.DedupCandidate, error) {
	return []repository.DedupCandidate{}, nil
}

func (s *memStore) ListContentDuplicates(ctx context.Context) ([]repository.DedupCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := map[string][]repository.DedupCandidate{}
	for _, r := range s.jobs {
		k := job.ContentKey(r.Title, r.Company)
		groups[k] = append(groups[k], repository.DedupCandidate{
			ID:           r.ID,
			GroupKey:     k,
			Source:       r.Source,
			ExternalID:   r.ExternalID,
			Title:        r.Title,
			Company:      r.Company,
			PublishedAt:  r.PublishedAt,
			UpdatedAt:    r.UpdatedAt,
			HasRelations: s.relations[r.ID],
		})
	}
	out := []repository.DedupCandidate{}
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g...)
		}
	}
	return out, nil
}

func (s *memStore) DeleteWithoutRelations(ctx context.Context, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for k, r := range s.jobs {
		if want[r.ID] && !s.relations[r.ID] {
			delete(s.jobs, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) FlagDuplicates(ctx context.Context, flags []repository.DuplicateFlag) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, f := range flags {
		dup := false
		for _, e := range s.flags {
			if e.JobID == f.JobID && e.SurvivorID == f.SurvivorID {
				dup = true
				break
			}
		}
		if !dup {
			s.flags = append(s.flags, f)
			n++
		}
	}
	return n, nil
}

func (s *memStore) get(key string) (job.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[key]
	if !ok {
		return job.Record{}, false
	}
	return *r, true
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *memStore) put(r job.Record) job.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.jobs[r.Key()] = &r
	return r
}

func (s *memStore) relate(id uuid.UUID) {
	s.mu.Lock()
	s.relations[id] = true
	s.mu.Unlock()
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return &t
}

func rec(src, id, title, company string) job.Record {
	return job.Record{
		Source:         src,
		ExternalID:     id,
		Title:          title,
		Company:        company,
		LocationType:   job.LocationRemote,
		EmploymentType: job.EmploymentFullTime,
		PublishedAt:    daysAgo(1),
	}
}

// malformed is a raw item the fake adapter refuses to normalize.
type malformed struct{}

// fakeAdapter serves scripted pages of job.Record items.
type fakeAdapter struct {
	name  string
	pages [][]any
	more  bool

	err   error
	panic bool
	block bool

	mu       sync.Mutex
	requests []source.PageRequest
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Fetch(ctx context.Context, req source.PageRequest) (source.Page, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	switch {
	case a.panic:
		panic("adapter exploded")
	case a.block:
		<-ctx.Done()
		return source.Page{}, ctx.Err()
	case a.err != nil:
		return source.Page{}, a.err
	}
	if req.Number > len(a.pages) {
		return source.Page{}, nil
	}
	items := a.pages[req.Number-1]
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return source.Page{Items: items, HasMore: a.more || req.Number < len(a.pages)}, nil
}

func (a *fakeAdapter) Normalize(raw any) (job.Record, bool) {
	r, ok := raw.(job.Record)
	if !ok {
		return job.Record{}, false
	}
	r.Source = a.name
	return r, true
}

func (a *fakeAdapter) pageRequests() []source.PageRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]source.PageRequest(nil), a.requests...)
}

func newTestRegistry(t *testing.T, adapters ...*fakeAdapter) *source.Registry {
	t.Helper()
	reg := source.NewRegistry()
	for i, a := range adapters {
		if err := reg.Register(a, source.Descriptor{Name: a.name, Priority: i + 1, MaxPageSize: 50}); err != nil {
			t.Fatalf("register %s: %v", a.name, err)
		}
	}
	return reg
}

func items(records ...job.Record) []any {
	out := make([]any, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	return out
}

// fakeLedger records ledger calls and enforces single finalization.
type fakeLedger struct {
	mu        sync.Mutex
	created   []syncrun.Run
	finalized map[uuid.UUID][]syncrun.Finalization
	createErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{finalized: map[uuid.UUID][]syncrun.Finalization{}}
}

func (l *fakeLedger) Create(ctx context.Context, run syncrun.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	l.created = append(l.created, run)
	return nil
}

func (l *fakeLedger) Finalize(ctx context.Context, id uuid.UUID, f syncrun.Finalization) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.finalized[id]) > 0 {
		return repository.ErrRunAlreadyFinalized
	}
	l.finalized[id] = append(l.finalized[id], f)
	return nil
}

func (l *fakeLedger) only(t *testing.T) (syncrun.Run, syncrun.Finalization) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.created) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(l.created))
	}
	run := l.created[0]
	fs := l.finalized[run.ID]
	if len(fs) != 1 {
		t.Fatalf("expected 1 finalization, got %d", len(fs))
	}
	return run, fs[0]
}

var errBoom = errors.New("boom")

func numbered(src string, n int) []job.Record {
	out := make([]job.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rec(src, fmt.Sprint(i), fmt.Sprintf("Engineer %d", i), "Acme"))
	}
	return out
}
