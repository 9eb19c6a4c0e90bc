package engine

import (
	"sync"

	"github.com/weftlabs/weft/internal/kernel"
)

type taskResult struct {
	res *kernel.RunResult
	err error
}

// task is one unit of executor work: a closure run on the executor
// goroutine, with the result delivered on done.
type task struct {
	id   uint64
	work func() (*kernel.RunResult, error)
	done chan taskResult
}

// taskQueue is a thread-safe FIFO queue of executor tasks.
//
// Unbounded: submitters block on their task's done channel, not on the
// queue, so depth is naturally limited by the number of callers.
//
// The signal channel (buffered, size 1) coalesces availability
// notifications so the executor can block without spinning.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []*task
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]*task, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Safe from any goroutine. Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue removes and returns the front task, blocking until one is
// available. Returns (nil, false) once the queue is closed and drained.
func (q *taskQueue) Dequeue() (*task, bool) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			t := q.tasks[0]
			// Nil out the slot so the backing array does not retain the
			// task's closure after it completes.
			q.tasks[0] = nil
			if len(q.tasks) == 1 {
				q.tasks = q.tasks[:0]
			} else {
				q.tasks = q.tasks[1:]
			}
			q.mu.Unlock()
			return t, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// Close stops further enqueues and wakes the executor.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Len returns the current queue depth.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
