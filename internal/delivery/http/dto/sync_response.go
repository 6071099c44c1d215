package dto

import (
	"fmt"
	"time"

	"job-sync/internal/domain"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"
	"job-sync/internal/usecase"

	"github.com/google/uuid"
)

type SyncRunResponse struct {
	RunID   uuid.UUID              `json:"run_id"`
	Type    syncrun.Type           `json:"sync_type"`
	Status  syncrun.Status         `json:"status"`
	Stats   syncrun.Stats          `json:"stats"`
	Results []syncrun.SourceResult `json:"results"`
	Errors  []string               `json:"errors"`
}

func NewSyncRunResponse(s syncrun.Summary) SyncRunResponse {
	out := SyncRunResponse{
		RunID:   s.RunID,
		Type:    s.Type,
		Status:  s.Status,
		Stats:   s.Stats,
		Results: s.Results,
		Errors:  s.Errors,
	}
	if out.Results == nil {
		out.Results = []syncrun.SourceResult{}
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return out
}

type RunningSync struct {
	ID         uuid.UUID    `json:"id"`
	Type       syncrun.Type `json:"sync_type"`
	Source     string       `json:"source,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	Progress   string       `json:"progress"`
	DurationMs int64        `json:"duration_ms"`
}

type SyncStatusResponse struct {
	Health          usecase.SyncHealth     `json:"health"`
	LastSync        *syncrun.Run           `json:"last_sync"`
	RunningSyncs    []RunningSync          `json:"running_syncs"`
	RecentSyncs     []syncrun.Run          `json:"recent_syncs"`
	Jobs            domain.JobStats        `json:"jobs"`
	LiveSources     []pipeline.SourceState `json:"live_sources"`
	DatabaseHealthy bool                   `json:"database_healthy"`
	RedisHealthy    bool                   `json:"redis_healthy"`
	ServerTime      time.Time              `json:"server_time"`
}

func NewSyncStatusResponse(v usecase.SyncStatusView) SyncStatusResponse {
	running := make([]RunningSync, 0, len(v.Running))
	for _, r := range v.Running {
		running = append(running, RunningSync{
			ID:         r.ID,
			Type:       r.Type,
			Source:     r.Source,
			StartedAt:  r.StartedAt,
			Progress:   fmt.Sprintf("%d/%d", r.SourcesCompleted, r.SourcesTotal),
			DurationMs: v.ServerTime.Sub(r.StartedAt).Milliseconds(),
		})
	}
	recent := v.RecentRuns
	if recent == nil {
		recent = []syncrun.Run{}
	}
	return SyncStatusResponse{
		Health:          v.Health,
		LastSync:        v.LastCompleted,
		RunningSyncs:    running,
		RecentSyncs:     recent,
		Jobs:            v.Jobs,
		LiveSources:     v.LiveSources,
		DatabaseHealthy: v.DatabaseHealthy,
		RedisHealthy:    v.RedisHealthy,
		ServerTime:      v.ServerTime,
	}
}
