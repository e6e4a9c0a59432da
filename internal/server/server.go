// Package server provides the HTTP server for the Slack-facing edge.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/config"
	"github.com/zozs/a-wild-button-appears/internal/handler"
	"github.com/zozs/a-wild-button-appears/internal/metrics"
	"github.com/zozs/a-wild-button-appears/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	handlers   *handler.Handlers
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, handlers *handler.Handlers, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:     router,
		httpServer: httpServer,
		handlers:   handlers,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Setup middleware chain
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.Metrics(s.metrics),
	}

	// Add rate limiter if enabled
	if s.cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimit.RequestsPerSecond,
			s.cfg.RateLimit.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	s.router.HandleFunc("/", s.handlers.Root).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)

	// Slack-signed endpoints
	verifier := middleware.NewSlackVerifier(s.cfg.Slack.SigningSecret, s.logger)
	s.router.Handle("/commands",
		verifier.Verify(http.HandlerFunc(s.handlers.Command))).Methods(http.MethodPost)
	s.router.Handle("/interactive",
		verifier.Verify(http.HandlerFunc(s.handlers.Interactive))).Methods(http.MethodPost)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
