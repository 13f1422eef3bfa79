package services

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/alfredjeanlab/statusd/internal/sampler"
)

// UsageTitle is the title of every hardware usage event.
const UsageTitle = "usage"

// HwUsageService publishes global CPU and memory usage.
type HwUsageService struct {
	bus     Publisher
	sampler sampler.Sampler
	logger  *slog.Logger
}

func NewHwUsageService(bus Publisher, s sampler.Sampler, logger *slog.Logger) *HwUsageService {
	return &HwUsageService{bus: bus, sampler: s, logger: logger}
}

func (h *HwUsageService) Poll(ctx context.Context) {
	cpu, err := h.sampler.CPUPercent(ctx)
	if err != nil {
		h.logger.Warn("hw usage: cpu sample failed", "err", err)
		return
	}
	memory, err := h.sampler.MemoryPercent(ctx)
	if err != nil {
		h.logger.Warn("hw usage: memory sample failed", "err", err)
		return
	}

	event := model.NewEvent(UsageTitle, model.KindHardwareUsage, model.CPU(cpu), model.Memory(memory))
	h.bus.Publish(events.TopicHwUsage, codec.Encode(event))
}
