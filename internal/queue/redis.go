package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dequeuePoll     = 2 * time.Second
	defaultVisible  = 10 * time.Minute
	promoteBatchMax = 100
)

// dequeueScript pops a ready job ID, bumps its attempt counter and registers
// it in-flight in one atomic step, so a consumer crashing mid-dequeue cannot
// lose the message.
// KEYS: ready list, in-flight zset, attempts hash. ARGV: redeliver-at unix.
var dequeueScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
	return false
end
local attempt = redis.call('HINCRBY', KEYS[3], id, 1)
redis.call('ZADD', KEYS[2], ARGV[1], id)
return {id, attempt}
`)

// RedisConfig holds configuration for the Redis-backed queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Key is the base name; the ready list, delayed zset, in-flight zset and
	// attempt hash are derived from it.
	Key string

	// VisibilityTimeout bounds how long a dequeued message may stay
	// unacknowledged before it is requeued.
	VisibilityTimeout time.Duration
}

// RedisQueue is a Redis-backed at-least-once queue. Ready job IDs live on a
// list consumed atomically by a Lua script; nacked and unacknowledged messages
// sit in sorted sets scored by the time they become deliverable again.
type RedisQueue struct {
	rdb        *redis.Client
	key        string // ready list
	delayedKey string // zset: score = available_at unix
	flightKey  string // zset: score = redeliver_at unix
	attemptKey string // hash: job id -> delivery attempts
	visibility time.Duration
}

// NewRedisQueue creates a RedisQueue and verifies connectivity.
func NewRedisQueue(ctx context.Context, cfg *RedisConfig) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = defaultVisible
	}

	return &RedisQueue{
		rdb:        rdb,
		key:        cfg.Key,
		delayedKey: cfg.Key + ":delayed",
		flightKey:  cfg.Key + ":inflight",
		attemptKey: cfg.Key + ":attempts",
		visibility: visibility,
	}, nil
}

// Enqueue publishes a job ID onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks until a job ID is available or ctx is done. Due delayed and
// expired in-flight messages are promoted back onto the ready list first.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := q.promote(ctx, q.delayedKey); err != nil {
			return nil, err
		}
		if err := q.promote(ctx, q.flightKey); err != nil {
			return nil, err
		}

		redeliverAt := time.Now().Add(q.visibility).Unix()
		res, err := dequeueScript.Run(ctx, q.rdb,
			[]string{q.key, q.flightKey, q.attemptKey}, redeliverAt).Result()
		if err == redis.Nil {
			// Ready list is empty; wait before polling again.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(dequeuePoll):
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		vals, ok := res.([]interface{})
		if !ok || len(vals) != 2 {
			return nil, fmt.Errorf("unexpected dequeue script reply: %v", res)
		}
		jobID, _ := vals[0].(string)
		attempt, _ := vals[1].(int64)
		return &Delivery{JobID: jobID, Attempt: int(attempt)}, nil
	}
}

// promote moves due members of a scheduled zset back onto the ready list.
func (q *RedisQueue) promote(ctx context.Context, zsetKey string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.rdb.ZRangeByScore(ctx, zsetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatchMax,
	}).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to fetch due messages: %w", err)
	}

	for _, jobID := range due {
		// Remove first so a crashing promoter cannot double-promote.
		removed, err := q.rdb.ZRem(ctx, zsetKey, jobID).Result()
		if err != nil {
			return fmt.Errorf("failed to remove due message: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key, jobID).Err(); err != nil {
			return fmt.Errorf("failed to promote message: %w", err)
		}
	}
	return nil
}

// Ack removes the delivery from the in-flight set and clears its attempts.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	pipe := q.rdb.Pipeline()
	pipe.ZRem(ctx, q.flightKey, d.JobID)
	pipe.HDel(ctx, q.attemptKey, d.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack schedules the delivery for redelivery after delay.
func (q *RedisQueue) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	availableAt := time.Now().Add(delay).Unix()
	pipe := q.rdb.Pipeline()
	pipe.ZRem(ctx, q.flightKey, d.JobID)
	pipe.ZAdd(ctx, q.delayedKey, redis.Z{
		Score:  float64(availableAt),
		Member: d.JobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
