package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arandu-labs/arandu/internal/logfields"
)

// NATSQueue is a JetStream-backed durable queue. One work-queue stream holds
// a subject per logical queue; the work-queue retention policy gives each
// item at-most-one consumer.
type NATSQueue struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewNATSQueue connects to NATS and ensures the work-queue stream exists.
func NewNATSQueue(url, stream string) (*NATSQueue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NATSQueue{conn: conn, js: js, stream: stream}
	if err := q.initStream(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS queue initialized", "url", url, "stream", stream)
	return q, nil
}

func (q *NATSQueue) initStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      q.stream,
		Subjects:  []string{q.subject(QueueDefault), q.subject(QueueReviews)},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", q.stream, err)
	}
	return nil
}

func (q *NATSQueue) subject(queue string) string {
	return "jobs." + queue
}

// Enqueue publishes the id onto the named queue.
func (q *NATSQueue) Enqueue(ctx context.Context, queue, id string) error {
	_, err := q.js.Publish(ctx, q.subject(queue), []byte(id))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	slog.Debug("Enqueued work item", logfields.Queue(queue), logfields.JobID(id))
	return nil
}

// Consume delivers items from the named queue to handler until ctx is
// cancelled. Each item is acked before handling: failures are terminal by
// contract, so redelivery would only repeat a failure.
func (q *NATSQueue) Consume(ctx context.Context, queue string, handler Handler) error {
	cons, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		Durable:       "arandu-" + queue,
		FilterSubject: q.subject(queue),
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer for %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := cons.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			slog.Warn("Queue fetch failed", logfields.Queue(queue), logfields.Error(err))
			continue
		}
		for msg := range msgs.Messages() {
			id := string(msg.Data())
			if err := msg.Ack(); err != nil {
				slog.Warn("Queue ack failed", logfields.Queue(queue), logfields.JobID(id), logfields.Error(err))
			}
			if err := handler(ctx, id); err != nil {
				slog.Error("Work item handler failed", logfields.Queue(queue), logfields.JobID(id), logfields.Error(err))
			}
		}
	}
}

// Close drains and closes the NATS connection.
func (q *NATSQueue) Close() error {
	q.conn.Close()
	return nil
}
