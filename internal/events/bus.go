package events

import (
	"sync"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
)

const defaultSubscriberBuffer = 64

// Bus is an in-process publish/subscribe hub keyed by topic (one topic per
// user). Publish never blocks: a subscriber whose buffer is full loses the
// event, which is acceptable because clients re-fetch job state on reconnect.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	log    *logger.Logger
}

// NewBus creates a Bus. bufferSize <= 0 uses the default per-subscriber buffer.
func NewBus(bufferSize int, log *logger.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Bus{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: bufferSize,
		log:    log,
	}
}

// Subscription is one consumer's handle on a topic. Events are drained from
// C() in publication order. Close is idempotent and releases the topic slot.
type Subscription struct {
	topic string
	ch    chan Event
	bus   *Bus
	once  sync.Once
}

// C returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Topic returns the topic the subscription is bound to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.ch)
	})
}

// Subscribe registers a new subscription on topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, b.buffer),
		bus:   b,
	}
	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every current subscriber of topic. It is
// fire-and-forget: absent subscribers and full buffers are not errors.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- event:
		default:
			b.log.WithFields(logger.Fields{
				"topic": topic,
				"type":  string(event.Type),
			}).Debug("Dropping event for slow subscriber")
		}
	}
}

// SubscriberCount reports how many subscriptions a topic currently has.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}
