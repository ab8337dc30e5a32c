// Package worker runs background jobs one at a time in submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/metrics"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
)

// ErrStopped is returned by Submit after Stop
var ErrStopped = errors.New("worker stopped")

// Job is a unit of background work. Its context is cancelled when the
// worker stops.
type Job func(ctx context.Context) error

type task struct {
	name string
	job  Job
}

// Worker is a single-consumer FIFO queue. At most one job runs at a time
// and jobs start in the order they were submitted. Submissions are never
// merged.
type Worker struct {
	tomb    tomb.Tomb
	metrics *metrics.Metrics

	mu      sync.Mutex
	queue   []task
	stopped bool
	wake    chan struct{}
}

// New starts a worker
func New(m *metrics.Metrics) *Worker {
	w := &Worker{
		metrics: m,
		wake:    make(chan struct{}, 1),
	}
	w.tomb.Go(w.loop)
	return w
}

// Submit enqueues job. It never blocks on the running job.
func (w *Worker) Submit(name string, job Job) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.queue = append(w.queue, task{name: name, job: job})
	depth := len(w.queue)
	w.mu.Unlock()
	w.metrics.QueueDepth(depth)

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until every job submitted before it has finished
func (w *Worker) Flush(ctx context.Context) error {
	done := make(chan struct{})
	err := w.Submit("flush", func(context.Context) error {
		close(done)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.tomb.Dead():
		return ErrStopped
	}
}

// Stop cancels the running job, drops pending ones and waits for the
// worker goroutine to exit.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.tomb.Kill(nil)
	err := w.tomb.Wait()

	w.mu.Lock()
	dropped := len(w.queue)
	w.queue = nil
	w.mu.Unlock()
	w.metrics.QueueDepth(0)
	if dropped > 0 {
		logger.Info(context.Background(), "worker stopped with pending jobs", "dropped", dropped)
	}
	return err
}

// Pending returns the number of queued jobs, excluding the running one
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) next() (task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return task{}, false
	}
	t := w.queue[0]
	w.queue[0] = task{}
	w.queue = w.queue[1:]
	w.metrics.QueueDepth(len(w.queue))
	return t, true
}

func (w *Worker) loop() error {
	ctx := w.tomb.Context(context.Background())
	for {
		select {
		case <-w.tomb.Dying():
			return nil
		default:
		}

		t, ok := w.next()
		if !ok {
			select {
			case <-w.tomb.Dying():
				return nil
			case <-w.wake:
			}
			continue
		}
		w.run(logger.WithJob(ctx, t.name), t)
	}
}

func (w *Worker) run(ctx context.Context, t task) {
	w.metrics.InFlight(1)
	defer w.metrics.InFlight(0)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return t.job(ctx)
	}()

	switch {
	case err == nil:
	case apperrors.IsCancellation(err):
		logger.Debug(ctx, "job cancelled", "error", err)
	default:
		logger.Error(ctx, "job failed", "error", err)
	}
}
