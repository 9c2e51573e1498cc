package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
)

// Publisher is the producer-side contract of the event bus. Bus satisfies it
// directly; RedisRelay satisfies it for producers running in another process.
type Publisher interface {
	Publish(topic string, event Event)
}

// relayEnvelope wraps an event with its topic for transport over one shared
// Redis channel.
type relayEnvelope struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// RedisRelay bridges the in-process Bus across processes. A worker publishes
// events onto a Redis channel; the API process runs the consumer side, which
// republishes them onto its local Bus so websocket clients receive updates
// produced in other processes. Delivery stays best-effort, matching the Bus.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisRelay creates a relay over the given channel name.
func NewRedisRelay(rdb *redis.Client, channel string, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.GetDefault()
	}
	return &RedisRelay{rdb: rdb, channel: channel, log: log}
}

// Publish sends the event to the relay channel. Fire-and-forget: marshal or
// transport errors are logged, never returned.
func (r *RedisRelay) Publish(topic string, event Event) {
	payload, err := json.Marshal(relayEnvelope{Topic: topic, Event: event})
	if err != nil {
		r.log.WithError(err).Warn("Failed to encode relayed event")
		return
	}
	if err := r.rdb.Publish(context.Background(), r.channel, payload).Err(); err != nil {
		r.log.WithError(err).WithFields(logger.Fields{
			"topic": topic,
			"type":  string(event.Type),
		}).Warn("Failed to relay event")
	}
}

// Run consumes the relay channel and republishes each event onto bus. It
// blocks until ctx is canceled.
func (r *RedisRelay) Run(ctx context.Context, bus *Bus) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(bus, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) deliver(bus *Bus, payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.log.WithError(err).Warn("Discarding malformed relayed event")
		return
	}
	if env.Topic == "" {
		r.log.Warn("Discarding relayed event without topic")
		return
	}
	bus.Publish(env.Topic, env.Event)
}
