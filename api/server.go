package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/api/handlers"
	"github.com/openalpha/etf-service/api/middleware"
	"github.com/openalpha/etf-service/api/types"
	"github.com/openalpha/etf-service/metrics"
)

// Server is the REST control surface over the ledger and the book.
type Server struct {
	httpServer *http.Server
	config     *Config
	logger     log.Logger

	// Services
	ledgerService types.LedgerService
	bookService   types.BookService

	// Handlers
	symbolHandler     *handlers.SymbolHandler
	positionHandler   *handlers.PositionHandler
	conversionHandler *handlers.ConversionHandler
	bookHandler       *handlers.BookHandler

	// Rate limiter
	rateLimiter *middleware.RateLimiter

	metrics *metrics.Collector
}

// Config contains server configuration
type Config struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DisableRateLimit bool
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         5000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new API server over the given services
func NewServer(config *Config, ledger types.LedgerService, book types.BookService, logger log.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:        config,
		logger:        logger.With("module", "api"),
		ledgerService: ledger,
		bookService:   book,
		rateLimiter:   middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
		metrics:       metrics.GetCollector(),
	}

	s.symbolHandler = handlers.NewSymbolHandler()
	s.positionHandler = handlers.NewPositionHandler(s.ledgerService)
	s.conversionHandler = handlers.NewConversionHandler(s.ledgerService)
	s.bookHandler = handlers.NewBookHandler(s.bookService)

	return s
}

// Handler returns the fully composed HTTP handler. Exposed so tests can
// mount the surface without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/symbols", s.symbolHandler.HandleSymbols)

	// Position endpoints (GET)
	mux.HandleFunc("/positions/", s.positionHandler.HandlePositions)

	// Conversion endpoints (POST), throttled per IP unless disabled
	createHandler := http.Handler(http.HandlerFunc(s.conversionHandler.HandleCreate))
	redeemHandler := http.Handler(http.HandlerFunc(s.conversionHandler.HandleRedeem))
	if !s.config.DisableRateLimit {
		limit := middleware.ConversionRateLimitMiddleware(s.rateLimiter)
		createHandler = limit(createHandler)
		redeemHandler = limit(redeemHandler)
	}
	mux.Handle("/create", createHandler)
	mux.Handle("/redeem", redeemHandler)

	mux.HandleFunc("/history", s.conversionHandler.HandleHistory)

	// Book depth (debugging surface)
	mux.HandleFunc("/book/", s.bookHandler.HandleBook)

	// Prometheus exposition
	mux.Handle("/metrics", metrics.Handler())

	// Middleware chain: CORS -> RateLimit -> Metrics -> Handler
	handler := s.metricsMiddleware(mux)
	if !s.config.DisableRateLimit {
		handler = middleware.RateLimitMiddleware(s.rateLimiter)(handler)
	}
	return corsMiddleware(handler)
}

// Start starts the API server and blocks until it shuts down
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("rest server starting",
		"addr", addr,
		"rate_limit", !s.config.DisableRateLimit,
	)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:  "ok",
		Service: "etf_service",
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records count and latency per route. Paths collapse to
// their first segment so client and symbol ids stay out of label space.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordAPIRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status), timer.ElapsedMs())
	})
}

// routeLabel reduces a request path to its first segment.
func routeLabel(path string) string {
	if len(path) < 2 {
		return path
	}
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}
