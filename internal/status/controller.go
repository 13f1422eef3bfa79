// Package status turns the event stream into the state the read API serves:
// the set of active status messages, the CPU and memory history, and the
// last clock tick.
package status

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/metrics"
	"github.com/alfredjeanlab/statusd/internal/model"
)

// Placeholder row shown when no other status is active.
const (
	PlaceholderTitle  = "All good!"
	PlaceholderStatus = "Nothing happening"
)

// Config configures a Controller.
type Config struct {
	// TTL is how long a non-socket entry survives without a refresh.
	// Default: 2 seconds.
	TTL time.Duration

	// SweepInterval is how often expired entries are evicted.
	// Default: 100 milliseconds.
	SweepInterval time.Duration

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Controller holds the most recent event per title. It is written only by
// its own bus handlers and its sweeper; everything else reads Snapshot.
//
// Socket events never expire. They stay until a socket event with the done
// status arrives for the same title.
type Controller struct {
	mu     sync.RWMutex
	active map[string]*model.Event

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics

	bus  *events.Bus
	subs map[string]int

	stop chan struct{}
	done chan struct{}
}

// NewController creates a controller and subscribes it to the process and
// socket topics. Call Start to begin evicting expired entries.
func NewController(bus *events.Bus, cfg Config) *Controller {
	if cfg.TTL == 0 {
		cfg.TTL = 2 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 100 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		active:        make(map[string]*model.Event),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		now:           cfg.Now,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		bus:           bus,
		subs:          make(map[string]int, 2),
	}
	c.subs[events.TopicProcess] = bus.Subscribe(events.TopicProcess, ProcessStatusHandler{c: c})
	c.subs[events.TopicSocket] = bus.Subscribe(events.TopicSocket, SocketStatusHandler{c: c})
	c.metrics.SetActive(0)
	return c
}

// ProcessStatusHandler feeds process watcher events into a Controller.
type ProcessStatusHandler struct{ c *Controller }

func (h ProcessStatusHandler) Handle(payload []byte) {
	if e, ok := h.c.decode(events.TopicProcess, payload); ok {
		h.c.apply(e)
	}
}

// SocketStatusHandler feeds socket events into a Controller.
type SocketStatusHandler struct{ c *Controller }

func (h SocketStatusHandler) Handle(payload []byte) {
	if e, ok := h.c.decode(events.TopicSocket, payload); ok {
		h.c.apply(e)
	}
}

func (c *Controller) decode(topic string, payload []byte) (*model.Event, bool) {
	return decodeEvent(topic, payload, c.now(), c.logger, c.metrics)
}

func decodeEvent(topic string, payload []byte, now time.Time, logger *slog.Logger, m *metrics.Metrics) (*model.Event, bool) {
	e, err := codec.DecodeAt(payload, now)
	if err != nil {
		m.DecodeError(topic)
		logger.Warn("status: dropping undecodable event", "topic", topic, "err", err)
		return nil, false
	}
	return e, true
}

func (c *Controller) apply(e *model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Kind == model.KindSocket {
		if desc, _ := e.Description(); model.IsDoneStatus(desc) {
			if _, ok := c.active[e.Title]; ok {
				delete(c.active, e.Title)
				c.logger.Debug("status: cleared", "title", e.Title)
			}
			c.metrics.SetActive(len(c.active))
			return
		}
	}

	c.active[e.Title] = e
	c.metrics.SetActive(len(c.active))
}

// Start launches the sweeper. Call Stop to shut it down.
func (c *Controller) Start() {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.sweepLoop()
	c.logger.Info("status: sweeper started", "ttl", c.ttl, "sweep_interval", c.sweepInterval)
}

// Stop shuts down the sweeper and unsubscribes from the bus.
func (c *Controller) Stop() {
	if c.stop != nil {
		close(c.stop)
		<-c.done
		c.stop = nil
		c.done = nil
	}
	for topic, id := range c.subs {
		c.bus.Unsubscribe(topic, id)
		delete(c.subs, topic)
	}
}

func (c *Controller) sweepLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep evicts every non-socket entry older than the TTL and returns how
// many were removed.
func (c *Controller) Sweep() int {
	now := c.now()

	c.mu.Lock()
	evicted := 0
	for title, e := range c.active {
		if e.Kind == model.KindSocket {
			continue
		}
		if e.Age(now) > c.ttl {
			delete(c.active, title)
			evicted++
		}
	}
	active := len(c.active)
	c.mu.Unlock()

	if evicted > 0 {
		c.metrics.Evicted(evicted)
		c.logger.Debug("status: evicted expired entries", "count", evicted)
	}
	c.metrics.SetActive(active)
	return evicted
}

// Snapshot returns the active messages sorted by title, or only the
// placeholder row when nothing is active.
func (c *Controller) Snapshot() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.active) == 0 {
		return []model.Message{{
			Title:       PlaceholderTitle,
			Status:      PlaceholderStatus,
			Kind:        model.KindProcess,
			Placeholder: true,
			UpdatedAt:   time.Unix(0, 0).UTC(),
		}}
	}

	out := make([]model.Message, 0, len(c.active))
	for title, e := range c.active {
		out = append(out, model.Message{
			Title:     title,
			Status:    statusText(e),
			Kind:      e.Kind,
			UpdatedAt: time.Unix(e.Timestamp, 0).UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Title < out[j].Title
	})
	return out
}

// Len returns the number of real (non-placeholder) entries.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

func statusText(e *model.Event) string {
	if desc, ok := e.Description(); ok {
		return desc
	}
	return e.Kind.String()
}
