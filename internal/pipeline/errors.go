package pipeline

import "errors"

var (
	// ErrSourceTransient wraps any failure fetching from an external source.
	// It fails that source only; the run continues.
	ErrSourceTransient = errors.New("source transient failure")

	ErrUnknownSource  = errors.New("unknown source")
	ErrInvalidMode    = errors.New("invalid sync mode")
	ErrPartialBatch   = errors.New("partial batch failure")
	ErrBudgetExceeded = errors.New("sync budget exceeded")
	ErrSourceBusy     = errors.New("source sync already in progress")
)
