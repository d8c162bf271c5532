// Package deferred runs post-response side effects.
//
// Metrics, activity log writes and notification sends are published here at
// the end of a successful pipeline run. Consumers execute them outside the
// request path; a failed task is logged and counted but never reported back
// to the operation that enqueued it.
package deferred

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/pkg/logger"
)

var tasksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bookmarkd",
	Name:      "deferred_tasks_total",
	Help:      "Total number of deferred tasks processed, by status.",
}, []string{"status"})

// Task is one unit of deferred work.
type Task func(ctx context.Context) error

type Mode int

const (
	// ModeAsync hands tasks to a worker pool. The service default.
	ModeAsync Mode = iota

	// ModeSync runs tasks inline on Enqueue. Used by CLI paths and tests
	// that assert on side effects.
	ModeSync

	// ModeDisabled drops tasks. Used by tests that assert the absence of
	// side effects.
	ModeDisabled
)

const (
	defaultWorkers     = 4
	defaultBufferSize  = 256
	defaultTaskTimeout = 30 * time.Second
)

type queuedTask struct {
	name string
	fn   Task
}

// Queue is the task channel plus its consumers.
type Queue struct {
	mode    Mode
	workers int
	logger  logger.Logger

	tasks chan queuedTask
	wg    conc.WaitGroup

	mu        sync.RWMutex
	closed    bool /* GUARDED_BY(mu) */
	closeOnce sync.Once
}

type Option func(*Queue)

func WithMode(mode Mode) Option {
	return func(q *Queue) {
		q.mode = mode
	}
}

// WithWorkers sets the async worker pool size. Values below one fall back
// to the default.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// NewQueue constructs the queue and, in async mode, starts its workers.
func NewQueue(l logger.Logger, opts ...Option) *Queue {
	q := &Queue{
		mode:    ModeAsync,
		workers: defaultWorkers,
		logger:  l,
		tasks:   make(chan queuedTask, defaultBufferSize),
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.mode == ModeAsync {
		for i := 0; i < q.workers; i++ {
			q.wg.Go(q.consume)
		}
	}

	return q
}

// Enqueue schedules fn. In sync mode it runs before Enqueue returns; in
// async mode it blocks only when the buffer is full. A task enqueued after
// Close is dropped.
func (q *Queue) Enqueue(name string, fn Task) {
	switch q.mode {
	case ModeDisabled:
		return
	case ModeSync:
		q.run(queuedTask{name: name, fn: fn})
	case ModeAsync:
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			tasksCounter.WithLabelValues("dropped").Inc()
			q.logger.Warn("deferred task dropped after close", zap.String("task", name))
			return
		}
		q.tasks <- queuedTask{name: name, fn: fn}
	}
}

func (q *Queue) consume() {
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t queuedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTaskTimeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		tasksCounter.WithLabelValues("failed").Inc()
		q.logger.Error("deferred task failed", zap.String("task", t.name), zap.Error(err))
		return
	}

	tasksCounter.WithLabelValues("ok").Inc()
}

// Close stops accepting tasks and drains the workers.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()

		if q.mode == ModeAsync {
			q.wg.Wait()
		}
	})
}
