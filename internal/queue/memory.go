package queue

import (
	"context"
	"fmt"
	"sync"
)

// MemoryQueue is a channel-backed Queue for tests and single-process runs.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]chan string
	closed bool
}

// NewMemoryQueue creates an in-memory queue with the given per-queue capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryQueue{
		queues: map[string]chan string{
			QueueDefault: make(chan string, capacity),
			QueueReviews: make(chan string, capacity),
		},
	}
}

func (q *MemoryQueue) channel(queue string) (chan string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, fmt.Errorf("queue is closed")
	}
	ch, ok := q.queues[queue]
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queue)
	}
	return ch, nil
}

// Enqueue adds the id to the named queue, failing when full.
func (q *MemoryQueue) Enqueue(ctx context.Context, queue, id string) error {
	ch, err := q.channel(queue)
	if err != nil {
		return err
	}
	select {
	case ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue %s is full", queue)
	}
}

// Consume delivers items to handler until ctx is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := q.channel(queue)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-ch:
			_ = handler(ctx, id)
		}
	}
}

// Close marks the queue closed; pending items are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
