package usecase

import (
	"fmt"
	"math"
	"time"

	"job-sync/internal/domain/syncrun"
)

const healthWindow = 5

type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type SyncHealth struct {
	Status           HealthStatus `json:"status"`
	Score            int          `json:"score"`
	Message          string       `json:"message"`
	LastSyncHoursAgo *int         `json:"last_sync_hours_ago,omitempty"`
	SuccessRate      string       `json:"success_rate,omitempty"`
}

// computeHealth grades the most recent runs, newest first. A run still in
// progress counts against the success rate.
func computeHealth(recent []syncrun.Run, now time.Time) SyncHealth {
	if len(recent) == 0 {
		return SyncHealth{Status: HealthUnknown, Message: "No sync history available"}
	}

	window := recent
	if len(window) > healthWindow {
		window = window[:healthWindow]
	}
	completed := 0
	for _, r := range window {
		if r.Status == syncrun.StatusCompleted {
			completed++
		}
	}
	rate := float64(completed) / float64(len(window))
	hours := now.Sub(recent[0].StartedAt).Hours()
	rounded := int(math.Round(hours))

	h := SyncHealth{
		Score:            int(math.Round(rate * 100)),
		LastSyncHoursAgo: &rounded,
		SuccessRate:      fmt.Sprintf("%d/%d", completed, len(window)),
	}
	switch {
	case rate >= 0.8 && hours < 25:
		h.Status = HealthHealthy
		h.Message = "Sync system is operating normally"
	case rate >= 0.6 || hours < 48:
		h.Status = HealthDegraded
		h.Message = "Sync system is experiencing some issues"
	default:
		h.Status = HealthUnhealthy
		h.Message = "Sync system requires attention"
	}
	return h
}
