// Package server provides the read-only HTTP API over the dive index and the run ledger.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/storage"
)

// Server is the HTTP server for the divetag API.
type Server struct {
	matcher  *matcher.Matcher
	resolver *matcher.Disambiguator
	ledger   storage.Ledger
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. ledger may be nil,
// in which case the run endpoints answer 503.
func NewServer(
	m *matcher.Matcher,
	ledger storage.Ledger,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := matcher.NewDisambiguator(matcher.SkipDecider,
		matcher.WithLogger(logger), matcher.WithPolicy(m.Policy()))
	s := &Server{
		matcher:  m,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the API routes with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/dives", s.handleDives)
	r.Get("/api/v1/match", s.handleMatch)
	r.Get("/api/v1/runs", s.handleRuns)
	r.Get("/api/v1/runs/{id}/items", s.handleRunItems)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
