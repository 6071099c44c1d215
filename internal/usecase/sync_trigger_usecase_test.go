package usecase

import (
	"context"
	"fmt"
	"testing"

	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	got     []pipeline.RunRequest
	summary syncrun.Summary
	err     error
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.RunRequest) (syncrun.Summary, error) {
	s.got = append(s.got, req)
	return s.summary, s.err
}

func TestSyncTrigger_ValidatesRequest(t *testing.T) {
	r := &stubRunner{}
	uc := NewSyncTriggerUsecase(r)

	for _, req := range []SyncRunRequest{
		{},
		{Mode: "weekly"},
		{Mode: "daily", StaleDays: -1},
		{Mode: "daily", StaleDays: 60, ExpiryDays: 30},
	} {
		_, err := uc.Trigger(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput, "request %+v", req)
	}
	assert.Empty(t, r.got)
}

func TestSyncTrigger_MapsRunnerErrors(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("%w: source selection requires manual mode", pipeline.ErrInvalidMode), ErrInvalidInput},
		{fmt.Errorf("%w: nope", pipeline.ErrUnknownSource), ErrNotFound},
		{fmt.Errorf("create sync run: connection refused"), ErrInternal},
	}
	for _, tc := range cases {
		r := &stubRunner{err: tc.err, summary: syncrun.Summary{Status: syncrun.StatusFailed}}
		summary, err := NewSyncTriggerUsecase(r).Trigger(context.Background(), SyncRunRequest{Mode: "manual", Source: "x"})
		assert.ErrorIs(t, err, tc.want)
		assert.Equal(t, syncrun.StatusFailed, summary.Status)
	}
}

func TestSyncTrigger_PassesRequestThrough(t *testing.T) {
	r := &stubRunner{summary: syncrun.Summary{Status: syncrun.StatusCompleted}}
	summary, err := NewSyncTriggerUsecase(r).Trigger(context.Background(), SyncRunRequest{
		Mode: "manual", Source: "remotive", Incremental: true,
	})
	require.NoError(t, err)
	assert.Equal(t, syncrun.StatusCompleted, summary.Status)
	require.Len(t, r.got, 1)
	assert.Equal(t, pipeline.RunRequest{Mode: syncrun.TypeManual, Source: "remotive", Incremental: true}, r.got[0])
}
