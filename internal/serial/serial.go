// Package serial provides a single-worker task queue: tasks run one at a
// time, in admission order, and enqueueing never blocks the caller.
package serial

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
)

// Queue is a serialized execution context. All state owned by the queue's
// tasks is only ever touched by the single worker goroutine, which removes
// the need for fine-grained locking in the task bodies themselves.
type Queue struct {
	mu     sync.Mutex
	logger *slog.Logger

	tasks *list.List // of func()
	wake  chan struct{}

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewQueue creates a new Queue.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger: logger,
		tasks:  list.New(),
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. Starting a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	q.mu.Unlock()

	go q.run(ctx)

	q.logger.Debug("serial queue started")
	return nil
}

// Stop stops the worker after the task in flight finishes. Tasks still
// pending are dropped and counted in the log.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	<-q.doneCh

	q.mu.Lock()
	dropped := q.tasks.Len()
	q.tasks.Init()
	q.mu.Unlock()

	q.logger.Debug("serial queue stopped", "dropped", dropped)
}

// Enqueue admits task for execution. It never blocks: the task is appended
// to the FIFO and the worker is woken. Tasks enqueued after Stop are
// silently dropped.
func (q *Queue) Enqueue(task func()) {
	if task == nil {
		return
	}

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.tasks.PushBack(task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

// run is the worker loop: drain everything admitted so far, then sleep
// until woken or stopped.
func (q *Queue) run(ctx context.Context) {
	defer close(q.doneCh)

	for {
		for {
			task := q.next()
			if task == nil {
				break
			}
			task()
		}

		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-q.wake:
		}
	}
}

// next pops the oldest pending task, or nil.
func (q *Queue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.tasks.Front()
	if front == nil {
		return nil
	}
	q.tasks.Remove(front)
	return front.Value.(func())
}
