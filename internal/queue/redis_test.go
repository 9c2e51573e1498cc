package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedisQueue(t *testing.T, visibility time.Duration) *RedisQueue {
	t.Helper()
	srv := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), &RedisConfig{
		Addr:              srv.Addr(),
		Key:               "test:jobs",
		VisibilityTimeout: visibility,
	})
	if err != nil {
		t.Fatalf("NewRedisQueue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestRedisQueueRoundTrip(t *testing.T) {
	q := testRedisQueue(t, time.Minute)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if d.JobID != "job-1" || d.Attempt != 1 {
		t.Fatalf("delivery = %+v", d)
	}
	if err := q.Ack(ctx, d); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	// Acked messages leave no in-flight or attempt state behind.
	if n, _ := q.rdb.ZCard(ctx, q.flightKey).Result(); n != 0 {
		t.Fatalf("in-flight count = %d after ack", n)
	}
	if n, _ := q.rdb.HLen(ctx, q.attemptKey).Result(); n != 0 {
		t.Fatalf("attempt count = %d after ack", n)
	}
}

func TestRedisQueueDequeueIsAtomic(t *testing.T) {
	q := testRedisQueue(t, time.Minute)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	// The message must be in-flight the instant it leaves the ready list; a
	// consumer dying here loses nothing.
	if n, _ := q.rdb.LLen(ctx, q.key).Result(); n != 0 {
		t.Fatalf("ready list length = %d", n)
	}
	score, err := q.rdb.ZScore(ctx, q.flightKey, d.JobID).Result()
	if err != nil {
		t.Fatalf("ZScore in-flight: %v", err)
	}
	if score <= float64(time.Now().Unix()) {
		t.Fatalf("redeliver-at %v not in the future", score)
	}
}

func TestRedisQueueRedeliversExpiredInFlight(t *testing.T) {
	q := testRedisQueue(t, time.Second)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if d.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", d.Attempt)
	}

	// Simulate a dead consumer: never ack, age the in-flight entry past its
	// visibility timeout.
	if err := q.rdb.ZAdd(ctx, q.flightKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Second).Unix()),
		Member: d.JobID,
	}).Err(); err != nil {
		t.Fatalf("age in-flight entry: %v", err)
	}

	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue redelivery: %v", err)
	}
	if redelivered.JobID != "job-1" || redelivered.Attempt != 2 {
		t.Fatalf("redelivery = %+v", redelivered)
	}
}

func TestRedisQueueNackRedelivers(t *testing.T) {
	q := testRedisQueue(t, time.Minute)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := q.Nack(ctx, d, 0); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue after nack: %v", err)
	}
	if redelivered.JobID != "job-1" || redelivered.Attempt != 2 {
		t.Fatalf("redelivery = %+v", redelivered)
	}
}

func TestRedisQueueDequeueHonorsContext(t *testing.T) {
	q := testRedisQueue(t, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Dequeue err = %v, want deadline exceeded", err)
	}
}
