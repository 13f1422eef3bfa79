// Package services holds the periodic producers that sample the host and
// publish encoded events on the bus.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher is the part of the bus the producers need.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Scheduler runs a poll function on a fixed interval until stopped.
type Scheduler struct {
	name     string
	interval time.Duration
	poll     func(ctx context.Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that calls poll every interval.
func NewScheduler(name string, interval time.Duration, poll func(ctx context.Context), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		poll:     poll,
		logger:   logger,
	}
}

// Start begins polling. The first poll runs immediately, then one per tick.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.logger.Info("producer started", "name", s.name, "interval", s.interval)
}

// Stop cancels the scheduler and waits for an in-flight poll to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}
