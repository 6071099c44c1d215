package syncrun

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDaily  Type = "daily"
	TypeHourly Type = "hourly"
	TypeManual Type = "manual"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDaily, TypeHourly, TypeManual:
		return true
	}
	return false
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one ledger entry. It is inserted as running and finalized once.
type Run struct {
	ID     uuid.UUID `json:"id"`
	Type   Type      `json:"sync_type"`
	Status Status    `json:"status"`
	Source string    `json:"source,omitempty"`

	SourcesTotal     int `json:"sources_total"`
	SourcesCompleted int `json:"sources_completed"`
	SourcesSkipped   int `json:"sources_skipped"`

	JobsCreated int `json:"jobs_created"`
	JobsUpdated int `json:"jobs_updated"`
	JobsStaled  int `json:"jobs_staled"`
	JobsDeleted int `json:"jobs_deleted"`

	Errors      []string   `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	DurationMs  *int64     `json:"duration_ms"`
}

// Finalization carries the terminal values written by the single
// finalization update.
type Finalization struct {
	Status           Status
	SourcesTotal     int
	SourcesCompleted int
	SourcesSkipped   int
	JobsCreated      int
	JobsUpdated      int
	JobsStaled       int
	JobsDeleted      int
	Errors           []string
	CompletedAt      time.Time
	DurationMs       int64
}

// SourceResult is the in-memory outcome of one source in one invocation.
type SourceResult struct {
	Source     string   `json:"source"`
	Success    bool     `json:"success"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Malformed  int      `json:"malformed"`
	Warnings   int      `json:"warnings"`
	Errors     []string `json:"errors"`
	DurationMs int64    `json:"duration_ms"`
}

type Stats struct {
	Created          int   `json:"created"`
	Updated          int   `json:"updated"`
	Staled           int   `json:"staled"`
	Deleted          int   `json:"deleted"`
	SourcesCompleted int   `json:"sources_completed"`
	SourcesSkipped   int   `json:"sources_skipped"`
	DurationMs       int64 `json:"duration_ms"`
}

// Summary is what every invocation returns, including partial failures.
type Summary struct {
	RunID   uuid.UUID      `json:"run_id"`
	Type    Type           `json:"sync_type"`
	Status  Status         `json:"status"`
	Stats   Stats          `json:"stats"`
	Results []SourceResult `json:"results"`
	Errors  []string       `json:"errors"`
}

// Aggregate folds per-source results into run counters and a flattened,
// source-prefixed error list.
func Aggregate(results []SourceResult) (Stats, []string) {
	var st Stats
	var errs []string
	for _, r := range results {
		st.Created += r.Created
		st.Updated += r.Updated
		if r.Success {
			st.SourcesCompleted++
		} else {
			st.SourcesSkipped++
		}
		for _, e := range r.Errors {
			errs = append(errs, r.Source+": "+e)
		}
	}
	return st, errs
}
