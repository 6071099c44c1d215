package pipeline

import (
	"context"
	"sync"

	"job-sync/internal/domain/syncrun"
)

// Task syncs one source. ID is echoed on the result so callers can match
// results to submissions; the name identifies it in budget reports when it
// never starts.
type Task struct {
	ID     int
	Source string
	Run    func(ctx context.Context) syncrun.SourceResult
}

// TaskResult is a source result tagged with the ID of its task.
type TaskResult struct {
	ID int
	syncrun.SourceResult
}

// WorkerPool runs source tasks on a fixed number of goroutines. Submissions
// beyond the buffer block, so callers size the buffer to the task count.
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, buffer),
	}
}

func (p *WorkerPool) Submit(t Task) {
	if p == nil || t.Run == nil {
		return
	}
	p.tasks <- t
}

func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

// Run starts the workers. Tasks dequeued after ctx is done are not started;
// they are reported as failed with ErrBudgetExceeded. The returned channel
// is closed once every worker exits and never blocks a worker.
func (p *WorkerPool) Run(ctx context.Context) <-chan TaskResult {
	out := make(chan TaskResult, cap(p.tasks)+p.workers)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				if ctx.Err() != nil {
					out <- TaskResult{ID: t.ID, SourceResult: notStarted(t.Source)}
					continue
				}
				out <- TaskResult{ID: t.ID, SourceResult: t.Run(ctx)}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()

	return out
}

func notStarted(source string) syncrun.SourceResult {
	return syncrun.SourceResult{
		Source: source,
		Errors: []string{ErrBudgetExceeded.Error() + ": not started"},
	}
}
