package status

import (
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/metrics"
	"github.com/alfredjeanlab/statusd/internal/model"
)

// DefaultHistoryLength is the number of samples kept per series.
const DefaultHistoryLength = 100

// UsageHistory keeps bounded CPU and memory series from hardware usage
// events. Both series always have the same length.
type UsageHistory struct {
	mu     sync.RWMutex
	cpu    []float64
	memory []float64
	limit  int

	logger  *slog.Logger
	metrics *metrics.Metrics

	bus *events.Bus
	id  int
}

// NewUsageHistory subscribes a history of at most limit samples to the
// hardware usage topic.
func NewUsageHistory(bus *events.Bus, limit int, logger *slog.Logger, m *metrics.Metrics) *UsageHistory {
	if limit <= 0 {
		limit = DefaultHistoryLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &UsageHistory{limit: limit, logger: logger, metrics: m, bus: bus}
	h.id = bus.Subscribe(events.TopicHwUsage, h)
	return h
}

func (h *UsageHistory) Handle(payload []byte) {
	// The received time is irrelevant to the series.
	e, ok := decodeEvent(events.TopicHwUsage, payload, zeroTime, h.logger, h.metrics)
	if !ok {
		return
	}
	cpu, okCPU := e.CPU()
	memory, okMem := e.Memory()
	if !okCPU || !okMem {
		h.logger.Warn("status: usage event missing cpu or memory", "title", e.Title)
		return
	}
	h.Add(cpu, memory)
}

// Add appends one sample, dropping the oldest once the limit is reached.
func (h *UsageHistory) Add(cpu, memory float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cpu = append(h.cpu, cpu)
	h.memory = append(h.memory, memory)
	if over := len(h.cpu) - h.limit; over > 0 {
		h.cpu = append(h.cpu[:0:0], h.cpu[over:]...)
		h.memory = append(h.memory[:0:0], h.memory[over:]...)
	}
}

// Usage returns copies of both series, oldest first.
func (h *UsageHistory) Usage() model.Usage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return model.Usage{
		CPU:    append([]float64{}, h.cpu...),
		Memory: append([]float64{}, h.memory...),
	}
}

// Latest returns the newest sample.
func (h *UsageHistory) Latest() (cpu, memory float64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.cpu) == 0 {
		return 0, 0, false
	}
	return h.cpu[len(h.cpu)-1], h.memory[len(h.memory)-1], true
}

// Close unsubscribes from the bus.
func (h *UsageHistory) Close() {
	h.bus.Unsubscribe(events.TopicHwUsage, h.id)
}
