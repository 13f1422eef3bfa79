// Package socket is the Unix domain socket ingestion endpoint. Each client
// connection carries a single JSON message of the form
//
//	{"title": "backup", "status": "running"}
//
// which is published on the bus as a socket event. A status of "done" clears
// the title downstream; the endpoint itself does not interpret it.
//
// The endpoint has no authentication, framing, backpressure or connection
// limit. Anyone who can open the socket file can inject a status.
package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/idgen"
	"github.com/alfredjeanlab/statusd/internal/metrics"
	"github.com/alfredjeanlab/statusd/internal/model"
)

// BufferSize is the size of the single read performed per connection.
const BufferSize = 1024

// DefaultName is the socket file name inside the temp directory.
const DefaultName = "statusd.sock"

// Publisher is the part of the bus the endpoint needs.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// BindError reports that the socket path could not be bound.
type BindError struct {
	Path string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding socket %s: %v", e.Path, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Path returns the socket path for name inside the system temp directory.
func Path(name string) string {
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(os.TempDir(), name)
}

// Config configures a Server.
type Config struct {
	// Path is the socket file. Default: Path(DefaultName).
	Path string

	// ReadTimeout bounds the single read per connection. Zero disables it.
	ReadTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Server accepts connections on a Unix domain socket and publishes one socket
// event per valid message.
type Server struct {
	listener    net.Listener
	path        string
	readTimeout time.Duration

	bus     Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics

	closeOnce sync.Once
	conns     sync.WaitGroup

	mu     sync.Mutex
	open   map[net.Conn]struct{}
	closed bool
}

// Listen removes any stale socket file at the configured path and binds a
// new one. A failure is returned as a *BindError.
func Listen(bus Publisher, cfg Config) (*Server, error) {
	if cfg.Path == "" {
		cfg.Path = Path(DefaultName)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if err := os.Remove(cfg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &BindError{Path: cfg.Path, Err: fmt.Errorf("removing stale socket: %w", err)}
	}
	ln, err := net.Listen("unix", cfg.Path)
	if err != nil {
		return nil, &BindError{Path: cfg.Path, Err: err}
	}

	cfg.Logger.Info("socket: listening", "path", cfg.Path)
	return &Server{
		listener:    ln,
		path:        cfg.Path,
		readTimeout: cfg.ReadTimeout,
		bus:         bus,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		open:        make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the socket path.
func (s *Server) Addr() string { return s.path }

// Serve runs the accept loop until ctx is cancelled or Close is called. Each
// connection is handled on its own goroutine; a failing connection never
// stops the loop.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.metrics.SocketReject("accept")
			s.logger.Warn("socket: accept failed", "err", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.metrics.SocketAccepted()
		if !s.track(conn) {
			conn.Close()
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer s.untrack(conn)
			s.handle(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.open[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.open, conn)
	s.mu.Unlock()
}

// Close stops accepting, closes in-flight connections, waits for their
// handlers and removes the socket file. A client that has not written by
// then loses its message.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()

		s.mu.Lock()
		s.closed = true
		for conn := range s.open {
			conn.Close()
		}
		s.mu.Unlock()

		s.conns.Wait()
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = rmErr
		}
	})
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	id := idgen.Conn()

	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	buf := make([]byte, BufferSize)
	n, err := conn.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		s.metrics.SocketReject("read")
		s.logger.Warn("socket: read failed", "conn", id, "err", err)
		return
	}

	msg, err := Parse(buf[:n])
	if err != nil {
		s.metrics.SocketReject("parse")
		s.logger.Warn("socket: bad payload", "conn", id, "err", err)
		return
	}

	s.logger.Debug("socket: message", "conn", id, "title", msg.Title, "status", msg.Status)
	event := model.NewEvent(msg.Title, model.KindSocket, model.Description(msg.Status))
	s.bus.Publish(events.TopicSocket, codec.Encode(event))
}

type wireMessage struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// Parse decodes a NUL-padded socket payload. Both fields are required, the
// title must be non-empty, and no other fields or trailing data are allowed.
func Parse(data []byte) (model.SocketMessage, error) {
	data = bytes.TrimRight(data, "\x00")
	if !utf8.Valid(data) {
		return model.SocketMessage{}, &codec.DecodeError{Input: string(data), Reason: "invalid utf-8"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireMessage
	if err := dec.Decode(&w); err != nil {
		return model.SocketMessage{}, &codec.DecodeError{Input: string(data), Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.SocketMessage{}, &codec.DecodeError{Input: string(data), Reason: "trailing data after message"}
	}
	if w.Title == nil || *w.Title == "" {
		return model.SocketMessage{}, &codec.DecodeError{Input: string(data), Reason: "missing title"}
	}
	if w.Status == nil {
		return model.SocketMessage{}, &codec.DecodeError{Input: string(data), Reason: "missing status"}
	}
	return model.SocketMessage{Title: *w.Title, Status: *w.Status}, nil
}
