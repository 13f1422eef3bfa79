// Package server exposes the aggregated status over a read-only HTTP API and
// a gRPC health service.
package server

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// StatusReader returns the current status snapshot.
type StatusReader interface {
	Snapshot() []model.Message
}

// UsageReader returns the CPU and memory history.
type UsageReader interface {
	Usage() model.Usage
}

// TimeReader returns the last clock tick.
type TimeReader interface {
	Time() time.Time
	Formatted() string
}

// StatusServer serves read-only views of the aggregator state.
type StatusServer struct {
	status StatusReader
	usage  UsageReader
	clock  TimeReader

	gatherer prometheus.Gatherer
	stream   *Stream
	logger   *slog.Logger
}

// NewStatusServer returns a server over the given readers. gatherer may be
// nil, in which case /metrics is not registered.
func NewStatusServer(st StatusReader, usage UsageReader, clock TimeReader, gatherer prometheus.Gatherer, logger *slog.Logger) *StatusServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusServer{
		status:   st,
		usage:    usage,
		clock:    clock,
		gatherer: gatherer,
		logger:   logger,
	}
}

// EnableStream serves st on GET /v1/events/stream. Call before
// NewHTTPHandler.
func (s *StatusServer) EnableStream(st *Stream) {
	s.stream = st
}
