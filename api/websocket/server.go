package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
)

// Server is the WebSocket endpoint subscribers connect to for the
// periodic state frames.
type Server struct {
	hub        *Hub
	httpServer *http.Server
	config     *ServerConfig
	logger     log.Logger
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:        "0.0.0.0",
		Port:        9002,
		ReadTimeout: 30 * time.Second,
		// Write timeout stays zero: the stream is long-lived and the
		// write deadline is managed per-frame by the client pump.
	}
}

// NewServer creates a new WebSocket server
func NewServer(config *ServerConfig, logger log.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	return &Server{
		hub:    NewHub(logger),
		config: config,
		logger: logger.With("module", "ws_server"),
	}
}

// Hub returns the subscriber hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and serves upgrade requests. It blocks until the
// server is shut down.
func (s *Server) Start() error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: s.config.ReadTimeout,
	}

	s.logger.Info("websocket server starting", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleWebSocket upgrades the connection and hands it to the hub. Only
// the root path upgrades; anything else is a lost subscriber.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.hub.ServeWS(w, r)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleStats handles stats requests
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(s.hub.Stats())
}
