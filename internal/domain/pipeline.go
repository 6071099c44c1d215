package domain

import "time"

type SourceStat struct {
	Source      string     `json:"source"`
	TotalJobs   int        `json:"total_jobs"`
	ActiveJobs  int        `json:"active_jobs"`
	LastSynced  *time.Time `json:"last_synced_at"`
	LastJobTime *time.Time `json:"last_job_time"`
}

// JobStats is a point-in-time view of the canonical store.
type JobStats struct {
	TotalJobs   int          `json:"total_jobs"`
	ActiveJobs  int          `json:"active_jobs"`
	StaleJobs   int          `json:"stale_jobs"`
	ExpiredJobs int          `json:"expired_jobs"`
	JobsToday   int          `json:"jobs_today"`
	Sources     []SourceStat `json:"sources"`
}

// CleanupStats reports how much lifecycle work is pending.
type CleanupStats struct {
	Total            int `json:"total"`
	Active           int `json:"active"`
	Stale            int `json:"stale"`
	Expired          int `json:"expired"`
	OlderThanStale   int `json:"older_than_stale_threshold"`
	StaleWithoutRels int `json:"stale_without_relations"`
	StaleDays        int `json:"stale_days"`
}
