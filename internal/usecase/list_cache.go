package usecase

import (
	"context"
	"time"
)

// ListCache is the slice of the redis cache the read query needs.
type ListCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidateJobLists(ctx context.Context) (int, error)
}
