package mqtt

import (
	"context"
	"sync"
	"time"
)

// defaultQueueSize is used when the configured size is not positive.
const defaultQueueSize = 16

// eventQueue is a bounded FIFO of inbound messages with a wake-up signal.
type eventQueue struct {
	mu       sync.Mutex
	items    []Message
	capacity int
	dropped  uint64

	// notify has a buffer of one; a send means "something was pushed".
	notify chan struct{}
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultQueueSize
	}
	return &eventQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// push appends m, reporting false when the queue is full.
func (q *eventQueue) push(m Message) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.dropped++
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// wait blocks until the queue is non-empty, timeout elapses or ctx ends.
func (q *eventQueue) wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if q.len() > 0 {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if q.len() > 0 {
				return true, nil
			}
		case <-timer.C:
			return q.len() > 0, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (q *eventQueue) drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *eventQueue) reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
