package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *StatusServer) NewHTTPHandler(authToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(RequestLogger(s.logger))
		r.Get("/v1/health", s.handleHealth)
		r.Get("/v1/status", s.handleStatus)
		r.Get("/v1/usage", s.handleUsage)
		r.Get("/v1/time", s.handleTime)
		if s.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})
	// The stream writes directly to the connection so it can flush; it logs
	// its own lifecycle.
	if s.stream != nil {
		r.Get("/v1/events/stream", s.handleEventStream)
	}
	return AuthMiddleware(authToken, r)
}

// TimeResponse is the body of GET /v1/time.
type TimeResponse struct {
	Unix      int64  `json:"unix"`
	Formatted string `json:"formatted"`
}

// handleHealth handles GET /v1/health.
func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /v1/status.
func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

// handleUsage handles GET /v1/usage.
func (s *StatusServer) handleUsage(w http.ResponseWriter, _ *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "usage history not available")
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Usage())
}

// handleTime handles GET /v1/time.
func (s *StatusServer) handleTime(w http.ResponseWriter, _ *http.Request) {
	if s.clock == nil {
		writeError(w, http.StatusServiceUnavailable, "clock not available")
		return
	}
	writeJSON(w, http.StatusOK, TimeResponse{
		Unix:      s.clock.Time().Unix(),
		Formatted: s.clock.Formatted(),
	})
}

// NewHTTPServer wraps handler with the timeouts used for the read API.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
