package status

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/metrics"
)

var zeroTime time.Time

// Clock tracks the last timestamp published by the datetime producer.
type Clock struct {
	unix atomic.Int64

	logger  *slog.Logger
	metrics *metrics.Metrics

	bus *events.Bus
	id  int
}

// NewClock subscribes a clock to the datetime topic. It reads start until
// the first tick arrives.
func NewClock(bus *events.Bus, start time.Time, logger *slog.Logger, m *metrics.Metrics) *Clock {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Clock{logger: logger, metrics: m, bus: bus}
	c.unix.Store(start.Unix())
	c.id = bus.Subscribe(events.TopicDateTime, c)
	return c
}

func (c *Clock) Handle(payload []byte) {
	e, ok := decodeEvent(events.TopicDateTime, payload, zeroTime, c.logger, c.metrics)
	if !ok {
		return
	}
	ts, ok := e.TimestampField()
	if !ok {
		c.logger.Warn("status: datetime event missing timestamp", "title", e.Title)
		return
	}
	c.unix.Store(ts)
}

// Unix returns the last timestamp in seconds.
func (c *Clock) Unix() int64 {
	return c.unix.Load()
}

// Time returns the last timestamp in UTC.
func (c *Clock) Time() time.Time {
	return time.Unix(c.unix.Load(), 0).UTC()
}

// Formatted renders the last timestamp as HH:MM:SS in UTC.
func (c *Clock) Formatted() string {
	return c.Time().Format(time.TimeOnly)
}

// Close unsubscribes from the bus.
func (c *Clock) Close() {
	c.bus.Unsubscribe(events.TopicDateTime, c.id)
}
