package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alfredjeanlab/statusd/internal/config"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/metrics"
	"github.com/alfredjeanlab/statusd/internal/sampler"
	"github.com/alfredjeanlab/statusd/internal/server"
	"github.com/alfredjeanlab/statusd/internal/services"
	"github.com/alfredjeanlab/statusd/internal/socket"
	"github.com/alfredjeanlab/statusd/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve [process...]",
	Short:   "Run the status daemon",
	Long:    "Run the status daemon. Each argument is a process name substring to watch, added to the configured watch list.",
	GroupID: "daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, args)
	},
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// mergeWatch appends CLI process names to the configured watch list.
func mergeWatch(configured, args []string) []string {
	out := append([]string(nil), configured...)
	return append(out, args...)
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	logger := newLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bus := events.NewBus(logger, m)

	// Teardown is deferred in construction order, so it runs in reverse:
	// listeners, producers, socket, consumers, mirror.
	defer logger.Info("shutdown complete")

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			logger.Error("NATS mirror disabled", "err", err)
		} else {
			mirror := events.NewMirror(bus, pub, events.Topics, logger)
			defer func() {
				mirror.Close()
				if err := pub.Close(); err != nil {
					logger.Error("error closing NATS publisher", "err", err)
				}
			}()
			logger.Info("NATS mirror enabled", "nats_url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
		}
	} else {
		logger.Info("NATS mirror disabled (STATUSD_NATS_URL not set)")
	}

	// Consumers subscribe before any producer starts.
	controller := status.NewController(bus, status.Config{
		TTL:           cfg.TTL,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
		Metrics:       m,
	})
	defer controller.Stop()
	usage := status.NewUsageHistory(bus, cfg.HistoryLength, logger, m)
	defer usage.Close()
	clock := status.NewClock(bus, time.Now(), logger, m)
	defer clock.Close()

	// A bind failure is fatal.
	sock, err := socket.Listen(bus, socket.Config{
		Path:        socket.Path(cfg.SocketName),
		ReadTimeout: cfg.SocketReadTimeout,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sockDone := make(chan error, 1)
	go func() { sockDone <- sock.Serve(ctx) }()
	defer func() {
		cancel()
		if err := <-sockDone; err != nil {
			logger.Error("socket server error", "err", err)
		}
		logger.Info("socket server stopped")
	}()

	controller.Start()

	sys := sampler.NewSystem()
	watcher := services.NewProcessWatcher(bus, sys, mergeWatch(cfg.Watch, args), logger)
	schedulers := []*services.Scheduler{
		services.NewScheduler("process_watcher", cfg.ProcessInterval, watcher.Poll, logger),
		services.NewScheduler("hw_usage", cfg.UsageInterval, services.NewHwUsageService(bus, sys, logger).Poll, logger),
		services.NewScheduler("datetime", cfg.ClockInterval, services.NewDateTimeService(bus, nil).Poll, logger),
	}
	for _, s := range schedulers {
		s.Start(ctx)
		defer s.Stop()
	}

	statusServer := server.NewStatusServer(controller, usage, clock, reg, logger)

	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
		}
		stream := server.NewStream(bus, events.Topics, logger)
		defer stream.Close()
		statusServer.EnableStream(stream)
		httpServer := server.NewHTTPServer(cfg.HTTPAddr, statusServer.NewHTTPHandler(cfg.AuthToken))
		// Event streams end with the daemon rather than holding up Shutdown.
		httpServer.BaseContext = func(net.Listener) context.Context { return ctx }
		go func() {
			logger.Info("HTTP server listening", "addr", lis.Addr().String())
			if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()
		defer func() {
			cancel()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", "err", err)
			}
		}()
	}

	grpcServer, healthServer := server.NewGRPCServer(logger)
	defer grpcServer.GracefulStop()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC server listening", "addr", lis.Addr().String())
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
	}
	server.SetServing(healthServer)

	logger.Info("statusd started",
		"socket", sock.Addr(),
		"watch", watcher.Watching(),
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
