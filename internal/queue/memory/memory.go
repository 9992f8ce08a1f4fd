// Package memory is the in-process Queue backend. Scheduled tasks live in a
// mutex-guarded slice that a single loop polls; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadcrm_backend/internal/queue"
	"leadcrm_backend/platform/logger"
)

const defaultPollInterval = time.Second

type scheduled struct {
	task queue.Task
	due  time.Time
	seq  uint64
}

// Queue is a polled in-memory queue.
type Queue struct {
	mu       sync.Mutex
	pending  []scheduled
	seq      uint64
	closed   bool
	handlers map[string]queue.HandlerFunc

	interval time.Duration
	now      func() time.Time
	log      *logger.Logger
}

var _ queue.Queue = (*Queue)(nil)

// New creates a queue polled every interval (default 1s).
func New(interval time.Duration, log *logger.Logger) *Queue {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Queue{
		handlers: make(map[string]queue.HandlerFunc),
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

func (q *Queue) Enqueue(_ context.Context, task queue.Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrClosed
	}
	if delay < 0 {
		delay = 0
	}
	q.seq++
	q.pending = append(q.pending, scheduled{task: task, due: q.now().Add(delay), seq: q.seq})
	return nil
}

func (q *Queue) Handle(taskType string, fn queue.HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = fn
}

// Run polls for due tasks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	q.log.Info("memory queue started", "interval", q.interval.String())
	for {
		select {
		case <-ctx.Done():
			q.log.Info("memory queue stopped")
			return nil
		case <-ticker.C:
			q.RunDue(ctx)
		}
	}
}

// RunDue processes every task due now, earliest first, and returns how many ran.
// Tasks enqueued by handlers are picked up only if already due.
func (q *Queue) RunDue(ctx context.Context) int {
	ran := 0
	for ctx.Err() == nil {
		item, fn, ok := q.popDue()
		if !ok {
			return ran
		}
		ran++
		if fn == nil {
			q.log.Warn("no handler for task", "type", item.task.Type)
			continue
		}
		if err := fn(ctx, item.task); err != nil {
			q.log.Error("task failed", "type", item.task.Type, "error", err)
		}
	}
	return ran
}

func (q *Queue) popDue() (scheduled, queue.HandlerFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return scheduled{}, nil, false
	}
	sort.Slice(q.pending, func(i, j int) bool {
		if q.pending[i].due.Equal(q.pending[j].due) {
			return q.pending[i].seq < q.pending[j].seq
		}
		return q.pending[i].due.Before(q.pending[j].due)
	})

	head := q.pending[0]
	if head.due.After(q.now()) {
		return scheduled{}, nil, false
	}
	q.pending = q.pending[1:]
	return head, q.handlers[head.task.Type], true
}

// Len returns the number of scheduled tasks, due or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NextDue returns the due time of the earliest task.
func (q *Queue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return time.Time{}, false
	}
	min := q.pending[0].due
	for _, s := range q.pending[1:] {
		if s.due.Before(min) {
			min = s.due
		}
	}
	return min, true
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Ping reports the queue as available until it is closed.
func (q *Queue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return queue.ErrClosed
	}
	return nil
}

// SetClock replaces the time source. Intended for tests.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}
