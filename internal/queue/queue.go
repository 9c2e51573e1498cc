// Package queue provides the work-queue port the executor consumes job IDs
// from. Delivery is at-least-once: a message that is neither acked nor nacked
// before its consumer dies is eventually redelivered (Redis driver), so the
// executor must tolerate duplicates.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Delivery is one received message carrying a job ID.
type Delivery struct {
	JobID string

	// Attempt is the 1-based delivery attempt for this job ID.
	Attempt int
}

// Queue transports job IDs from the submission surface to the executor.
type Queue interface {
	// Enqueue publishes a job ID for processing.
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue blocks until a message is available, the context is done, or
	// the queue is closed.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack marks the delivery as fully handled.
	Ack(ctx context.Context, d *Delivery) error

	// Nack schedules the delivery for redelivery after delay.
	Nack(ctx context.Context, d *Delivery, delay time.Duration) error

	// Close releases resources. Blocked Dequeue calls return ErrClosed.
	Close() error
}
