// Package server provides the HTTP API over the progress store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Larry-Leee/progressVisualisation/internal/config"
	"github.com/Larry-Leee/progressVisualisation/internal/ingest"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
)

// WatchService manages the watched inbox directories. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the progress API.
type Server struct {
	queries  *query.Engine
	ingester *ingest.Ingester
	storage  storage.Storage
	projects projectindex.Index // optional
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	watch      WatchService // optional
	configPath string       // where watch changes are saved; empty disables saving
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. projects and watch may be nil.
func NewServer(
	queries *query.Engine,
	ingester *ingest.Ingester,
	store storage.Storage,
	projects projectindex.Index,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		queries:    queries,
		ingester:   ingester,
		storage:    store,
		projects:   projects,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.config.Debug {
		r.Use(middleware.Logger)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/periods", s.handlePeriods)
		r.Get("/periods/{period}", s.handlePeriodView)
		r.Get("/cumulative", s.handleCumulative)
		r.Post("/snapshot", s.handleSnapshot)
		r.Post("/ingest", s.handleIngest)
		r.Get("/documents", s.handleDocuments)
		r.Get("/projects/search", s.handleProjectSearch)
		r.Get("/status", s.handleStatus)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
