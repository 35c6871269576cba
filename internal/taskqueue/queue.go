// Package taskqueue runs submitted work one item at a time, in submission
// order, on a single worker goroutine.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
)

// ErrClosed is returned by Sync once the worker has stopped.
var ErrClosed = errors.New("task queue closed")

// Task is one unit of work. The context is the worker's, not the submitter's.
type Task func(ctx context.Context) error

// Result describes how one task ended. Exactly one Result is produced per
// submitted task.
type Result struct {
	Seq      uint64
	Label    string
	Err      error
	Panic    any
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil
}

type item struct {
	seq   uint64
	label string
	fn    Task
}

// Queue is an unbounded FIFO drained by one worker. Submit never blocks.
type Queue struct {
	mu       sync.Mutex
	pending  []item
	seq      uint64
	closed   bool
	signal   chan struct{}
	done     chan struct{}
	onResult func(Result)

	shutdownTimeout time.Duration
}

type Option func(*Queue)

// WithResultHook registers fn to observe every Result. It runs on the worker.
func WithResultHook(fn func(Result)) Option {
	return func(q *Queue) { q.onResult = fn }
}

// WithShutdownTimeout bounds the final drain after the run context ends.
func WithShutdownTimeout(d time.Duration) Option {
	return func(q *Queue) { q.shutdownTimeout = d }
}

func New(opts ...Option) *Queue {
	q := &Queue{
		signal:          make(chan struct{}, 1),
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit appends fn to the queue. It returns false when the worker has
// already shut down; the task is then discarded.
func (q *Queue) Submit(label string, fn Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Warn("[TaskQueue] Submit after shutdown, task discarded", "label", label)
		return false
	}
	q.seq++
	q.pending = append(q.pending, item{seq: q.seq, label: label, fn: fn})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run executes tasks until ctx is cancelled, then drains everything
// submitted before the cancellation and returns. Run must be called once.
func (q *Queue) Run(ctx context.Context) error {
	slog.Info("[TaskQueue] Worker started")
	defer close(q.done)

	for {
		q.runPending(ctx)

		select {
		case <-q.signal:
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			remaining := len(q.pending)
			q.mu.Unlock()

			slog.Info("[TaskQueue] Stopping, running final drain", "pending", remaining)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), q.shutdownTimeout)
			defer cancel()
			q.runPending(shutdownCtx)

			slog.Info("[TaskQueue] Worker stopped")
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Sync waits until every task submitted before the call has run.
func (q *Queue) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	ok := q.Submit("sync", func(context.Context) error {
		close(reached)
		return nil
	})
	if !ok {
		return ErrClosed
	}

	select {
	case <-reached:
		return nil
	case <-q.done:
		select {
		case <-reached:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) runPending(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.pending = nil
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending[0] = item{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.execute(ctx, next)
	}
}

// execute is the single failure boundary: errors and panics end here.
func (q *Queue) execute(ctx context.Context, it item) {
	start := time.Now()
	res := Result{Seq: it.seq, Label: it.label}

	defer func() {
		if p := recover(); p != nil {
			res.Panic = p
			res.Err = fmt.Errorf("task %s panicked: %v", it.label, p)
		}
		res.Duration = time.Since(start)
		logResult(res)
		q.notify(res)
	}()

	res.Err = it.fn(ctx)
}

func logResult(res Result) {
	if res.Err == nil {
		return
	}
	attrs := []any{"label", res.Label, "seq", res.Seq, "error", res.Err}
	if res.Panic != nil {
		slog.Error("[TaskQueue] Task panicked", attrs...)
		return
	}

	switch perr.Class(res.Err) {
	case "suppressed", "identity_conflict":
		slog.Debug("[TaskQueue] Record dropped", attrs...)
	case "validation":
		slog.Warn("[TaskQueue] Record rejected", attrs...)
	case "enrichment":
		slog.Warn("[TaskQueue] Enrichment failed", attrs...)
	default:
		slog.Error("[TaskQueue] Task failed", attrs...)
	}
}

// notify runs the result hook. A panicking hook is logged and ignored.
func (q *Queue) notify(res Result) {
	if q.onResult == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("[TaskQueue] Result hook panicked", "seq", res.Seq, "label", res.Label, "panic", p)
		}
	}()
	q.onResult(res)
}
