package processing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work run by the Queue.
type Task func(ctx context.Context) error

// Future resolves with the outcome of a queued task.
type Future struct {
	id   string
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{id: uuid.NewString(), done: make(chan struct{})}
}

func (f *Future) ID() string { return f.id }

// Done is closed once the task has finished or was dropped.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the task's error. Only valid after Done is closed.
func (f *Future) Err() error { return f.err }

// Wait blocks until the task settles or ctx is done. Giving up on the wait
// does not remove the task from the queue.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

type job struct {
	ctx    context.Context
	name   string
	task   Task
	future *Future
}

// Queue runs tasks strictly one at a time in submission order.
type Queue struct {
	mu       sync.Mutex
	pending  []*job
	active   *job
	draining bool
	onChange func(size int)
	lock     Locker
	logger   *slog.Logger
}

func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Queue{logger: logger}
}

// OnChange registers fn to be called with the new size whenever a task is
// added, starts or finishes.
func (q *Queue) OnChange(fn func(size int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

// SetLocker makes every task hold l while it runs. Tasks in other
// processes using the same lock then never overlap with this queue's.
func (q *Queue) SetLocker(l Locker) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lock = l
}

// Add enqueues task. The task runs with ctx; if ctx is already done when
// the task's turn comes, the future resolves with ctx.Err() and the task
// never runs.
func (q *Queue) Add(ctx context.Context, name string, task Task) *Future {
	j := &job{ctx: ctx, name: name, task: task, future: newFuture()}

	q.mu.Lock()
	q.pending = append(q.pending, j)
	start := !q.draining
	q.draining = true
	size := q.sizeLocked()
	q.mu.Unlock()

	q.logger.Debug("job queued", "job", j.future.id, "name", name, "size", size)
	q.notify(size)
	if start {
		go q.drain()
	}
	return j.future
}

// Size is the number of pending plus running tasks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sizeLocked()
}

func (q *Queue) IsBusy() bool {
	return q.Size() > 0
}

func (q *Queue) sizeLocked() int {
	n := len(q.pending)
	if q.active != nil {
		n++
	}
	return n
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.active = j
		q.mu.Unlock()

		err := q.run(j)

		q.mu.Lock()
		q.active = nil
		size := q.sizeLocked()
		q.mu.Unlock()

		j.future.resolve(err)
		q.notify(size)
	}
}

func (q *Queue) run(j *job) (err error) {
	logger := q.logger.With("job", j.future.id, "name", j.name)
	if err := j.ctx.Err(); err != nil {
		logger.Debug("job cancelled before start", "error", err)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()

	q.mu.Lock()
	lock := q.lock
	q.mu.Unlock()
	if lock != nil {
		logger.Debug("waiting for lock")
		if err := lock.Lock(j.ctx); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release lock", "error", err)
			}
		}()
	}

	start := time.Now()
	logger.Debug("job started")
	err = j.task(j.ctx)
	logger.Debug("job finished", "elapsed", time.Since(start), "error", err)
	return err
}

func (q *Queue) notify(size int) {
	q.mu.Lock()
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn(size)
	}
}
