// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/querychat/internal/query"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the mock backend.
	DefaultPort = 8787

	// MaxRequestBodySize is the maximum size for a request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// DefaultRatePerSec and DefaultBurst bound each client's request rate.
	DefaultRatePerSec = 20.0
	DefaultBurst      = 40

	// Version is the mock backend version.
	Version = "0.1.0"
)

// ============================================================================
// STATS
// ============================================================================

// ServerStats counts answered questions per fixture kind.
type ServerStats struct {
	TotalRequests int64
	StartTime     time.Time

	mu     sync.Mutex
	byKind map[FixtureKind]int64
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{
		StartTime: time.Now(),
		byKind:    make(map[FixtureKind]int64),
	}
}

// RecordRequest records one answered question.
func (s *ServerStats) RecordRequest(kind FixtureKind) {
	atomic.AddInt64(&s.TotalRequests, 1)
	s.mu.Lock()
	s.byKind[kind]++
	s.mu.Unlock()
}

// Count returns the number of questions answered with the given kind.
func (s *ServerStats) Count(kind FixtureKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKind[kind]
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the mock query backend.
type Server struct {
	port    int
	router  *http.ServeMux
	server  *http.Server
	stats   *ServerStats
	limiter *RateLimiter
	cors    *CORSConfig
	logger  *log.Logger
	latency time.Duration

	mu sync.RWMutex
}

// NewServer creates a new Server with the specified port.
// If port is 0, the default port (8787) is used.
func NewServer(port int) *Server {
	if port == 0 {
		port = DefaultPort
	}

	s := &Server{
		port:    port,
		router:  http.NewServeMux(),
		stats:   NewServerStats(),
		limiter: NewRateLimiter(DefaultRatePerSec, DefaultBurst),
		cors:    DefaultCORSConfig(),
		logger:  log.Default(),
	}

	s.setupRoutes()
	return s
}

// WithLatency delays every answer, to exercise client spinners and timeouts.
func (s *Server) WithLatency(d time.Duration) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
	return s
}

// WithRateLimiter replaces the per-client limiter.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rl
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(logger *log.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Stats returns the live request counters.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /query", s.handleQuery)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(s.limiter),
	)(s.router)
}

// ============================================================================
// QUERY HANDLER
// ============================================================================

// handleQuery handles POST /query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	question := strings.TrimSpace(req.Query)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len([]rune(question)) > query.MaxQueryLength {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("query exceeds %d characters", query.MaxQueryLength))
		return
	}

	s.mu.RLock()
	latency := s.latency
	s.mu.RUnlock()
	if latency > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(latency):
		}
	}

	kind, status, body := BuildFixture(question)
	s.stats.RecordRequest(kind)

	w.Header().Set("X-Request-Id", uuid.NewString())
	w.Header().Set("X-Fixture", string(kind))
	s.writeJSON(w, status, body)
}

// ============================================================================
// HEALTH AND STATS HANDLERS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
	})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalRequests int64            `json:"total_requests"`
	ByKind        map[string]int64 `json:"by_kind"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		TotalRequests: atomic.LoadInt64(&s.stats.TotalRequests),
		ByKind:        make(map[string]int64, len(Kinds)),
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
	}
	for _, kind := range Kinds {
		resp.ByKind[string(kind)] = s.stats.Count(kind)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start binds 127.0.0.1 on the configured port and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve answers requests on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Printf("[server] listening on %s (version %s)", ln.Addr(), Version)
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if srv == nil {
		return nil
	}

	s.logger.Printf("[server] shutting down after %d requests", atomic.LoadInt64(&s.stats.TotalRequests))
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
