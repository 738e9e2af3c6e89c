// Package server exposes the analyzer over a small JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianbeese/mietcheck/internal/config"
)

// NewRouter creates the gin engine with all routes
func NewRouter(handler *Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.POST("/analyze-url", handler.AnalyzeURL)
		api.POST("/mietspiegel-by-plz", handler.MarketRent)
		api.POST("/mietspiegel-batch", handler.MarketRentBatch)
	}

	return router
}

// Server wraps the HTTP listener
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a server for the given handler
func New(cfg config.HTTPConfig, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping")
	return s.srv.Shutdown(shutdownCtx)
}
