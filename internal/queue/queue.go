// Package queue provides the durable work queues feeding the reproduction and
// review workers. Work items carry only the entity UUID; workers fetch full
// state from the store.
package queue

import "context"

// Queue names. Reproduction jobs ride "default"; review pipelines ride
// "reviews" with a much tighter per-item deadline.
const (
	QueueDefault = "default"
	QueueReviews = "reviews"
)

// Handler processes one dequeued item. A non-nil error leaves the failure
// handling to the handler itself; the queue does not redeliver.
type Handler func(ctx context.Context, id string) error

// Queue is the producer/consumer contract shared by the NATS-backed
// implementation and the in-memory test double.
type Queue interface {
	// Enqueue publishes the id onto the named queue.
	Enqueue(ctx context.Context, queue, id string) error
	// Consume blocks delivering items from the named queue to handler until
	// ctx is cancelled. Items are delivered to at most one consumer.
	Consume(ctx context.Context, queue string, handler Handler) error
	// Close releases the underlying connection.
	Close() error
}
