package source

import (
	"context"
	"net/http"
	"strings"
	"time"

	"job-sync/internal/domain/job"
)

// PageRequest asks an adapter for one page. Number starts at 1. Since is
// set on incremental runs; adapters push it to the remote API when it has a
// matching filter and otherwise leave the cutoff to the caller.
type PageRequest struct {
	Number int
	Limit  int
	Since  *time.Time
}

// Page is one batch of raw, source-specific items in the order the source
// returned them.
type Page struct {
	Items   []any
	HasMore bool
}

// Adapter fetches and normalizes postings for one external source. Adapters
// never touch the store.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req PageRequest) (Page, error)
	// Normalize returns false for malformed items; they are dropped and counted.
	Normalize(raw any) (job.Record, bool)
}

// Descriptor carries the scheduling hints for an adapter.
type Descriptor struct {
	Name        string
	Priority    int
	MaxPageSize int
	MinInterval time.Duration
}

// Options configures the HTTP side of an adapter. Zero values fall back to
// the public endpoint and a default client.
type Options struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
}

func (o Options) withDefaults(baseURL string) Options {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = baseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = "JobSync/1.0"
	}
	return o
}
