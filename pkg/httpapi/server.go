// Package httpapi exposes the proxy over HTTP: an OpenAI-compatible
// chat completions endpoint for voice clients, memory sync endpoints
// for frontends, a WebSocket transport, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rybuilt/humelink/pkg/orchestrator"
	"github.com/rybuilt/humelink/pkg/session"
)

// ServerOptions holds HTTP server configuration
type ServerOptions struct {
	Port         int
	Host         string
	DefaultModel string
}

// Server is the proxy HTTP server
type Server struct {
	options        ServerOptions
	server         *http.Server
	orchestrator   *orchestrator.Orchestrator
	store          *session.Store
	upgrader       websocket.Upgrader
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new proxy server
func NewServer(options ServerOptions, orch *orchestrator.Orchestrator, store *session.Store, logger zerolog.Logger) (*Server, error) {
	observability.EnsureRegistered()

	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.DefaultModel == "" {
		return nil, fmt.Errorf("default model is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	return &Server{
		options:      options,
		orchestrator: orch,
		store:        store,
		upgrader: websocket.Upgrader{
			// Voice clients connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /memory/{sessionID}", s.handleGetMemory)
	mux.HandleFunc("POST /memory/{sessionID}", s.handleMergeMemory)
	mux.HandleFunc("DELETE /memory/{sessionID}", s.handleDeleteMemory)
	mux.HandleFunc("DELETE /memory/{sessionID}/{key}", s.handleDeleteMemory)
	mux.HandleFunc("GET /llm", s.handleWebSocket)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	return s.withCORS(mux)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting proxy server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start proxy server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down proxy server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown proxy server: %w", err)
		}
	}

	s.logger.Info().Msg("Proxy server stopped")
	return nil
}

// beginRequest tracks an in-flight request, refusing it when the server
// is draining. The caller must invoke the returned func when done.
func (s *Server) beginRequest(w http.ResponseWriter) (func(), bool) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	return s.inFlightReqs.Done, true
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "humelink",
		"uptime":  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeErrorEnvelope emits the OpenAI-style error body used before any
// streaming has begun.
func (s *Server) writeErrorEnvelope(w http.ResponseWriter, status int, errType, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"message": message,
			"type":    errType,
		},
	})
}
