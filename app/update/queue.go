package update

import (
	"context"
	"sync"
	"time"
)

const queueCapacity = 300

// Queue is the hand-off between the request-serving path and the workers.
// Enqueue never blocks; duplicate requests for a feed that is already queued,
// in flight, or awaiting a retry coalesce into no-ops.
type Queue struct {
	userCh  chan Task
	sweepCh chan Task

	mu      sync.Mutex
	tracked map[int64]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		userCh:  make(chan Task, queueCapacity),
		sweepCh: make(chan Task, queueCapacity),
		tracked: make(map[int64]struct{}),
	}
}

// Enqueue posts a refresh task for the feed. Returns false when the feed is
// already tracked (coalesced) or the queue is full.
func (q *Queue) Enqueue(feedID int64, priority Priority) bool {
	q.mu.Lock()
	if _, ok := q.tracked[feedID]; ok {
		q.mu.Unlock()
		return false
	}
	q.tracked[feedID] = struct{}{}
	q.mu.Unlock()

	task := Task{FeedID: feedID, Priority: priority, EnqueuedAt: time.Now()}
	if q.push(task) {
		return true
	}

	q.Done(feedID)
	return false
}

// requeue re-posts a task that is still tracked, used for backoff retries.
// Returns false when the queue is full; the caller must then release tracking.
func (q *Queue) requeue(task Task) bool {
	return q.push(task)
}

func (q *Queue) push(task Task) bool {
	ch := q.sweepCh
	if task.Priority == PriorityUser {
		ch = q.userCh
	}

	select {
	case ch <- task:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a task is available or ctx is done. User-triggered
// tasks are drained before periodic ones.
func (q *Queue) Dequeue(ctx context.Context) (Task, bool) {
	select {
	case task := <-q.userCh:
		return task, true
	default:
	}

	select {
	case task := <-q.userCh:
		return task, true
	case task := <-q.sweepCh:
		return task, true
	case <-ctx.Done():
		return Task{}, false
	}
}

// Done releases a feed's tracking slot after its task reached a terminal
// state. Until then, repeat enqueues for the feed stay coalesced.
func (q *Queue) Done(feedID int64) {
	q.mu.Lock()
	delete(q.tracked, feedID)
	q.mu.Unlock()
}

// Depth reports how many tasks are waiting. For stats endpoints.
func (q *Queue) Depth() int {
	return len(q.userCh) + len(q.sweepCh)
}
