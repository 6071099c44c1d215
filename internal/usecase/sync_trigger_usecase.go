package usecase

import (
	"context"
	"errors"
	"fmt"

	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"
)

type SyncRunRequest struct {
	Mode        string `json:"mode" validate:"required,oneof=daily hourly manual"`
	Source      string `json:"source" validate:"max=64"`
	Incremental bool   `json:"incremental"`
	StaleDays   int    `json:"stale_days" validate:"gte=0,lte=3650"`
	ExpiryDays  int    `json:"expiry_days" validate:"gte=0,lte=3650"`
}

type SyncRunner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (syncrun.Summary, error)
}

type SyncTriggerUsecase interface {
	Trigger(ctx context.Context, req SyncRunRequest) (syncrun.Summary, error)
}

type SyncTrigger struct {
	runner SyncRunner
}

func NewSyncTriggerUsecase(runner SyncRunner) *SyncTrigger {
	return &SyncTrigger{runner: runner}
}

// Trigger runs one sync invocation. A summary is returned alongside an
// unknown-source error so the caller can still report the failed run.
func (u *SyncTrigger) Trigger(ctx context.Context, req SyncRunRequest) (syncrun.Summary, error) {
	if err := validateInput(req); err != nil {
		return syncrun.Summary{}, err
	}
	if req.StaleDays > 0 && req.ExpiryDays > 0 && req.ExpiryDays <= req.StaleDays {
		return syncrun.Summary{}, fmt.Errorf("%w: expiry_days must exceed stale_days", ErrInvalidInput)
	}

	summary, err := u.runner.Run(ctx, pipeline.RunRequest{
		Mode:        syncrun.Type(req.Mode),
		Source:      req.Source,
		Incremental: req.Incremental,
		StaleDays:   req.StaleDays,
		ExpiryDays:  req.ExpiryDays,
	})
	switch {
	case err == nil:
		return summary, nil
	case errors.Is(err, pipeline.ErrInvalidMode):
		return summary, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, pipeline.ErrUnknownSource):
		return summary, fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return summary, fmt.Errorf("%w: %v", ErrInternal, err)
	}
}
