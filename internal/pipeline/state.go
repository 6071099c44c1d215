package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SourcePhase string

const (
	PhaseRunning   SourcePhase = "running"
	PhaseCompleted SourcePhase = "completed"
	PhaseFailed    SourcePhase = "failed"
)

// SourceState is the live view of the latest sync of one source in this
// process.
type SourceState struct {
	Source     string      `json:"source"`
	RunID      uuid.UUID   `json:"run_id"`
	Phase      SourcePhase `json:"phase"`
	Page       int         `json:"page"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`

	expiresAt time.Time
}

// RunState is process-scoped sync state: per-source status entries that
// expire after a TTL, plus a per-source mutual exclusion slot. Entries are
// last-write-wins per source.
type RunState struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]SourceState
	slots   map[string]chan struct{}
}

func NewRunState(ttl time.Duration) *RunState {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunState{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]SourceState{},
		slots:   map[string]chan struct{}{},
	}
}

func (s *RunState) Put(st SourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	st.UpdatedAt = now
	st.expiresAt = now.Add(s.ttl)
	s.entries[st.Source] = st
}

// Update applies fn to the current entry for source, if one is live.
func (s *RunState) Update(source string, fn func(*SourceState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[source]
	now := s.now()
	if !ok || now.After(st.expiresAt) {
		return
	}
	fn(&st)
	st.UpdatedAt = now
	st.expiresAt = now.Add(s.ttl)
	s.entries[source] = st
}

func (s *RunState) Get(source string) (SourceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[source]
	if !ok {
		return SourceState{}, false
	}
	if s.now().After(st.expiresAt) {
		delete(s.entries, source)
		return SourceState{}, false
	}
	return st, true
}

// Snapshot returns every live entry sorted by source, evicting expired ones.
func (s *RunState) Snapshot() []SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	out := make([]SourceState, 0, len(s.entries))
	for _, st := range s.entries {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (s *RunState) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *RunState) sweepLocked() int {
	now := s.now()
	n := 0
	for k, st := range s.entries {
		if now.After(st.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// TryAcquire claims the sync slot for source. The returned release must be
// called exactly once; ok is false when another sync holds the slot.
func (s *RunState) TryAcquire(source string) (release func(), ok bool) {
	s.mu.Lock()
	slot, exists := s.slots[source]
	if !exists {
		slot = make(chan struct{}, 1)
		s.slots[source] = slot
	}
	s.mu.Unlock()

	select {
	case slot <- struct{}{}:
	default:
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, true
}
