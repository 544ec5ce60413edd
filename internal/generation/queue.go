package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrQueueClosed is returned by Do after the queue has been shut down.
var ErrQueueClosed = errors.New("collaborator queue is closed")

// Queue serializes calls to one generation collaborator. Collaborators hold
// large model state and tolerate at most one in-flight call at a time, so
// every call goes through a single worker goroutine; orchestration around the
// queue may run concurrently across stories. Each call runs under the queue's
// stage timeout, and a timeout is reported as a call failure rather than
// blocking the worker forever.
type Queue struct {
	name    string
	jobs    chan queueJob
	timeout time.Duration

	mu     sync.Mutex
	closed bool

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type queueJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewQueue creates a queue with the given submission depth and per-call
// timeout, and starts its worker.
func NewQueue(name string, depth int, timeout time.Duration) *Queue {
	if depth <= 0 {
		depth = 16
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	q := &Queue{
		name:    name,
		jobs:    make(chan queueJob, depth),
		timeout: timeout,
		quit:    make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.execute(job)
		case <-q.quit:
			// Отклоняем все, что осталось в очереди
			for {
				select {
				case job := <-q.jobs:
					job.done <- ErrQueueClosed
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) execute(job queueJob) {
	if err := job.ctx.Err(); err != nil {
		job.done <- err
		return
	}

	ctx, cancel := context.WithTimeout(job.ctx, q.timeout)
	defer cancel()

	err := job.fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s call timed out after %s: %w", q.name, q.timeout, err)
		log.Ctx(job.ctx).Error().Str("queue", q.name).Dur("timeout", q.timeout).Msg("collaborator call timed out")
	}
	job.done <- err
}

// Do submits fn to the queue and waits for it to finish. The submission
// context cancels waiting; the call itself runs under the queue timeout.
// Submission holds the queue mutex so it cannot race Close: a job either
// lands in the buffer before the closed flag flips (and the worker drains it)
// or the submission fails with ErrQueueClosed.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	job := queueJob{ctx: ctx, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		q.mu.Unlock()
	case <-ctx.Done():
		q.mu.Unlock()
		return ctx.Err()
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the queue down and waits for the worker to stop. Jobs already
// in the buffer fail with ErrQueueClosed; later submissions are rejected at
// the door.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.quit)
	})
	q.wg.Wait()
}
