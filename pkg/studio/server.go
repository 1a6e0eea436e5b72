package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/studiobridge/internal/observability"
	"github.com/harun/studiobridge/pkg/relay"
)

// ServerOptions configures the plugin-facing HTTP server
type ServerOptions struct {
	Host string
	Port int
}

// completionPayload is the body the plugin posts to /response
type completionPayload struct {
	ID     int64                  `json:"id"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Server exposes the dispatch and completion endpoints the Studio plugin
// polls. The plugin can only originate requests, so both sides of the relay
// are plain HTTP handlers.
type Server struct {
	options        ServerOptions
	server         *http.Server
	queue          *relay.Queue
	logger         zerolog.Logger
	instanceID     string
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new plugin-facing server
func NewServer(options ServerOptions, queue *relay.Queue, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3002
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}

	if queue == nil {
		return nil, fmt.Errorf("relay queue is required")
	}

	observability.EnsureRegistered()

	return &Server{
		options:    options,
		queue:      queue,
		logger:     logger,
		instanceID: uuid.New().String(),
		startTime:  time.Now(),
	}, nil
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/request", s.handleRequest)
	mux.HandleFunc("/response", s.handleResponse)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting Studio plugin server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start Studio plugin server: %w", err)
	}

	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.options.Host, s.options.Port)
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Studio plugin server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown Studio plugin server: %w", err)
	}

	s.logger.Info().Msg("Studio plugin server stopped")
	return nil
}

// handleRequest hands every pending command to the polling plugin. An empty
// queue yields an empty array, never an error, so the plugin loop stays dumb.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.beginRequest(w) {
		return
	}
	defer s.inFlightReqs.Done()

	requestID, _ := gonanoid.New()
	observability.RecordPluginPoll()

	dispatches := s.queue.ClaimPending()
	if len(dispatches) > 0 {
		s.logger.Info().
			Str("requestId", requestID).
			Int("count", len(dispatches)).
			Msg("Dispatching commands to plugin")
	}

	s.writeJSON(w, http.StatusOK, dispatches)
}

// handleResponse accepts a completion from the plugin. The plugin is always
// acknowledged, even when the command already timed out, because it has no
// use for the distinction and must not retry.
func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.beginRequest(w) {
		return
	}
	defer s.inFlightReqs.Done()

	var payload completionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse completion body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	matched := s.queue.Resolve(payload.ID, relay.Outcome{
		Result: payload.Result,
		Err:    payload.Error,
	})
	observability.RecordPluginCompletion(matched)

	s.logger.Debug().
		Int64("commandId", payload.ID).
		Bool("matched", matched).
		Msg("Completion received from plugin")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).Seconds(),
		"queueSize":  s.queue.Len(),
		"instanceId": s.instanceID,
		"timestamp":  time.Now().UnixMilli(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// beginRequest rejects work during shutdown and tracks the in-flight request
func (s *Server) beginRequest(w http.ResponseWriter) bool {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return false
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response body")
	}
}
