package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is a channel-backed queue for single-process deployments and
// tests. Nack redelivers after the given delay; there is no visibility
// timeout, so an executor that dies mid-message loses it.
type MemoryQueue struct {
	ch   chan Delivery
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue creates a MemoryQueue with the given buffer size.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MemoryQueue{
		ch:   make(chan Delivery, bufferSize),
		done: make(chan struct{}),
	}
}

// Enqueue publishes a job ID for processing.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.send(ctx, Delivery{JobID: jobID, Attempt: 1})
}

func (q *MemoryQueue) send(ctx context.Context, d Delivery) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- d:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a message is available, the queue closes, or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case d := <-q.ch:
		return &d, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: the message left the channel when it was dequeued.
func (q *MemoryQueue) Ack(ctx context.Context, d *Delivery) error {
	return nil
}

// Nack re-enqueues the delivery after delay with an incremented attempt count.
func (q *MemoryQueue) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	redelivery := Delivery{JobID: d.JobID, Attempt: d.Attempt + 1}
	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
		}
		_ = q.send(ctx, redelivery)
	}()
	return nil
}

// Close wakes blocked consumers and rejects further sends.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}
