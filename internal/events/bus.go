package events

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/alfredjeanlab/statusd/internal/metrics"
)

// Handler receives payloads published on a topic.
//
// Handle runs synchronously on the publishing goroutine, so it must be short
// and must not block. The bus never holds its lock while a handler runs.
type Handler interface {
	Handle(payload []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(payload []byte)

func (f HandlerFunc) Handle(payload []byte) { f(payload) }

type subscription struct {
	id      int
	handler Handler
}

// Bus is an in-process topic-keyed publish/subscribe registry. Delivery is
// best effort and synchronous: Publish returns once every handler registered
// at the time of the call has run.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]subscription

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBus creates an empty bus. m may be nil.
func NewBus(logger *slog.Logger, m *metrics.Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]subscription),
		logger:      logger,
		metrics:     m,
	}
}

// Publish delivers a copy of payload to every handler subscribed to topic, in
// subscription order. A topic with no subscribers is a no-op. A panicking
// handler is logged and skipped; the remaining handlers still run.
func (b *Bus) Publish(topic string, payload []byte) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subscribers[topic]...)
	b.mu.Unlock()

	b.metrics.Published(topic)
	for _, sub := range subs {
		b.dispatch(topic, sub, bytes.Clone(payload))
	}
}

func (b *Bus) dispatch(topic string, sub subscription, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.HandlerPanic(topic)
			b.logger.Error("bus: panic recovered in handler",
				"topic", topic,
				"id", sub.id,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	sub.handler.Handle(payload)
}

// Subscribe registers h on topic and returns its id: the lowest non-negative
// integer not in use on that topic. Ids are reused after Unsubscribe.
//
// Finding the id is a linear scan over the topic's subscribers, which is fine
// for the handful of subscribers a topic has.
func (b *Bus) Subscribe(topic string, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	id := freeID(subs)
	b.subscribers[topic] = append(subs, subscription{id: id, handler: h})
	return id
}

func freeID(subs []subscription) int {
	used := make(map[int]struct{}, len(subs))
	for _, s := range subs {
		used[s.id] = struct{}{}
	}
	id := 0
	for {
		if _, ok := used[id]; !ok {
			return id
		}
		id++
	}
}

// Unsubscribe removes the subscription with the given id from topic. It
// returns the removed id and true, or false if no such subscription exists.
func (b *Bus) Unsubscribe(topic string, id int) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = subs
		}
		return id, true
	}
	return 0, false
}

// Subscribers returns the number of handlers registered on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[topic])
}
