// Package server provides the HTTP API for ledgerfind.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/answer"
	"github.com/opexhub/ledgerfind/internal/config"
	"github.com/opexhub/ledgerfind/internal/indexer"
	"github.com/opexhub/ledgerfind/internal/notify"
	"github.com/opexhub/ledgerfind/internal/search"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
)

// Server is the HTTP server for the ledgerfind API.
type Server struct {
	engine    *search.Engine
	indexer   *indexer.Indexer
	storage   storage.Store
	index     *vector.SlotIndex
	formatter answer.Formatter
	events    *notify.Broadcaster
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. formatter and
// events may be nil.
func NewServer(
	engine *search.Engine,
	ix *indexer.Indexer,
	store storage.Store,
	index *vector.SlotIndex,
	formatter answer.Formatter,
	events *notify.Broadcaster,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    engine,
		indexer:   ix,
		storage:   store,
		index:     index,
		formatter: formatter,
		events:    events,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/users", s.handleCreateUser)
	r.Post("/api/v1/expenses", s.handleCreateExpense)
	r.Put("/api/v1/expenses/{id}", s.handleUpdateExpense)
	r.Get("/api/v1/expenses/{id}", s.handleGetExpense)
	r.Post("/api/v1/claims", s.handleCreateClaim)
	r.Get("/api/v1/claims/{id}", s.handleGetClaim)
	r.Get("/api/v1/status", s.handleStatus)
	if s.events != nil {
		r.Get("/api/v1/events", s.handleEvents)
	}
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
