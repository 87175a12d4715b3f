package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"capworks/internal/logger"
)

// Runner executes submitted jobs on a single background goroutine, detached
// from the request that submitted them. Cross-process exclusion is not its
// concern; the persisted program-book flag carries that.
type Runner struct {
	queue chan job
	wg    sync.WaitGroup
	mu    sync.Mutex
	idle  sync.WaitGroup

	closed bool
}

type job struct {
	name string
	fn   func(ctx context.Context)
}

var ErrShuttingDown = errors.New("worker: shutting down")

// New creates a runner with the given queue capacity and starts it.
func New(queueSize int) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}
	r := &Runner{queue: make(chan job, queueSize)}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for j := range r.queue {
		func() {
			defer r.idle.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logger.L().Error("background job panicked", zap.String("job", j.name), zap.Any("panic", rec))
				}
			}()
			j.fn(context.Background())
		}()
	}
}

// Submit schedules fn for background execution and returns immediately.
func (r *Runner) Submit(name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrShuttingDown
	}
	r.idle.Add(1)
	select {
	case r.queue <- job{name: name, fn: fn}:
		return nil
	default:
		r.idle.Done()
		return errors.New("worker: queue full")
	}
}

// Wait blocks until every submitted job has finished. Test hook; callers in
// production poll persisted state instead.
func (r *Runner) Wait() {
	r.idle.Wait()
}

// Shutdown stops accepting jobs and drains the queue.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}
