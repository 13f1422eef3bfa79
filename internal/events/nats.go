package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes encoded event payloads to NATS subjects named
// <prefix>.<topic>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("statusd-mirror"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

// Publish hands payload to the NATS client. The client buffers outgoing
// messages, so this does not wait on the network.
func (p *NATSPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	return p.conn.Publish(Subject(p.prefix, topic), payload)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Subject joins a subject prefix and a bus topic.
func Subject(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

// Mirror republishes every payload on a set of bus topics to a Publisher.
// Failures are logged and never affect local delivery.
type Mirror struct {
	pub    Publisher
	logger *slog.Logger

	bus *Bus
	ids map[string]int
}

// NewMirror subscribes to topics on bus and forwards them to pub.
func NewMirror(bus *Bus, pub Publisher, topics []string, logger *slog.Logger) *Mirror {
	m := &Mirror{pub: pub, logger: logger, bus: bus, ids: make(map[string]int, len(topics))}
	for _, topic := range topics {
		m.ids[topic] = bus.Subscribe(topic, mirrorHandler{m: m, topic: topic})
	}
	return m
}

type mirrorHandler struct {
	m     *Mirror
	topic string
}

func (h mirrorHandler) Handle(payload []byte) {
	if err := h.m.pub.Publish(context.Background(), h.topic, payload); err != nil {
		h.m.logger.Warn("mirror: publish failed", "topic", h.topic, "err", err)
	}
}

// Close unsubscribes from the bus. It does not close the publisher.
func (m *Mirror) Close() {
	for topic, id := range m.ids {
		m.bus.Unsubscribe(topic, id)
	}
	m.ids = nil
}

// NATSSubscriber receives mirrored payloads from NATS.
type NATSSubscriber struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSubscriber connects to NATS with automatic reconnection support.
// Extra nats.Option values (e.g. disconnect/reconnect handlers) can be appended.
func NewNATSSubscriber(url, prefix string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc, prefix: prefix}, nil
}

// Subscribe delivers messages whose subject matches pattern (NATS wildcards
// allowed). Topic is the subject with the subscriber's prefix stripped.
// Messages are dropped when the channel is full.
func (s *NATSSubscriber) Subscribe(pattern string) (<-chan Message, func(), error) {
	ch := make(chan Message, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(pattern, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Message{Topic: s.topicOf(msg.Subject), Payload: msg.Data}:
		default:
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", pattern, err)
	}
	// Make sure the server knows about the subscription before returning so
	// that messages published on other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (s *NATSSubscriber) topicOf(subject string) string {
	if s.prefix == "" {
		return subject
	}
	return strings.TrimPrefix(subject, s.prefix+".")
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
