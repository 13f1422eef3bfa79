package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// streamRingSize is the number of recent events kept in memory for
	// Last-Event-ID reconnection support.
	streamRingSize = 256

	// streamKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	streamKeepaliveInterval = 15 * time.Second
)

// streamEvent is a single event stored in the ring buffer and sent to SSE clients.
type streamEvent struct {
	ID    uint64 // monotonically increasing sequence number
	Topic string
	Data  []byte // JSON-encoded event
}

// Stream fans bus events out to connected SSE clients as JSON. It keeps a
// ring buffer of recent events for Last-Event-ID reconnection.
//
// Its bus handlers never block: a client whose buffer is full misses events.
type Stream struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	nextID  atomic.Uint64

	ringMu  sync.RWMutex
	ring    [streamRingSize]streamEvent
	ringPos int // next write position (wraps around)
	ringLen int // number of valid entries (up to streamRingSize)

	logger *slog.Logger
	bus    *events.Bus
	ids    map[string]int
}

// streamClient represents a single connected SSE consumer.
type streamClient struct {
	topics []string          // topic patterns to match (empty = all)
	ch     chan *streamEvent // buffered channel for event delivery
}

// NewStream subscribes a stream to topics on bus.
func NewStream(bus *events.Bus, topics []string, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		clients: make(map[*streamClient]struct{}),
		logger:  logger,
		bus:     bus,
		ids:     make(map[string]int, len(topics)),
	}
	for _, topic := range topics {
		s.ids[topic] = bus.Subscribe(topic, streamHandler{s: s, topic: topic})
	}
	return s
}

type streamHandler struct {
	s     *Stream
	topic string
}

func (h streamHandler) Handle(payload []byte) {
	e, err := codec.Decode(payload)
	if err != nil {
		h.s.logger.Debug("stream: dropping undecodable event", "topic", h.topic, "err", err)
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.s.logger.Warn("stream: marshal failed", "topic", h.topic, "err", err)
		return
	}
	h.s.broadcast(h.topic, data)
}

// Close unsubscribes from the bus.
func (s *Stream) Close() {
	for topic, id := range s.ids {
		s.bus.Unsubscribe(topic, id)
	}
	s.ids = nil
}

// broadcast sends an event to all connected clients whose topic filters match.
func (s *Stream) broadcast(topic string, payload []byte) {
	evt := &streamEvent{
		ID:    s.nextID.Add(1),
		Topic: topic,
		Data:  payload,
	}

	s.ringMu.Lock()
	s.ring[s.ringPos] = *evt
	s.ringPos = (s.ringPos + 1) % streamRingSize
	if s.ringLen < streamRingSize {
		s.ringLen++
	}
	s.ringMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.matchesTopic(topic) {
			select {
			case c.ch <- evt:
			default:
			}
		}
	}
}

// subscribe registers a new SSE client and returns it. Call unsubscribe when done.
func (s *Stream) subscribe(topics []string) *streamClient {
	c := &streamClient{
		topics: topics,
		ch:     make(chan *streamEvent, 64),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// unsubscribe removes a client from the stream.
func (s *Stream) unsubscribe(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// eventsSince returns buffered events with ID > lastID, in order.
func (s *Stream) eventsSince(lastID uint64) []*streamEvent {
	s.ringMu.RLock()
	defer s.ringMu.RUnlock()

	var result []*streamEvent
	start := s.ringPos - s.ringLen
	if start < 0 {
		start += streamRingSize
	}
	for i := range s.ringLen {
		evt := s.ring[(start+i)%streamRingSize]
		if evt.ID > lastID {
			result = append(result, &evt)
		}
	}
	return result
}

// matchesTopic reports whether topic matches one of the client's filters.
// Filters are path.Match globs, so "hw_*" selects hw_usage. No filters
// matches every topic.
func (c *streamClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if ok, _ := path.Match(pattern, topic); ok {
			return true
		}
	}
	return false
}

// handleEventStream handles GET /v1/events/stream (SSE endpoint).
func (s *StatusServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	client := s.stream.subscribe(topics)
	defer s.stream.unsubscribe(client)

	s.logger.Debug("event stream opened", "topics", topics, "request_id", middleware.GetReqID(r.Context()))
	defer s.logger.Debug("event stream closed", "request_id", middleware.GetReqID(r.Context()))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream: response cannot be flushed", "err", err)
		return
	}

	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			for _, evt := range s.stream.eventsSince(lastID) {
				if client.matchesTopic(evt.Topic) {
					writeStreamEvent(w, evt)
				}
			}
			_ = rc.Flush()
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(streamKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			_ = rc.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			_ = rc.Flush()
		}
	}
}

// writeStreamEvent writes a single SSE event to the writer.
func writeStreamEvent(w http.ResponseWriter, evt *streamEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
