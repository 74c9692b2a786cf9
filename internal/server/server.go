// Package server provides the HTTP API for docqa.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"docqa/config"
	"docqa/internal/usecase"
)

// DefaultMaxUploadBytes caps the size of an uploaded document.
const DefaultMaxUploadBytes = 32 << 20

// Server is the HTTP server for the upload and search API.
type Server struct {
	ingest *usecase.IngestUseCase
	ask    *usecase.AskUseCase
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server

	maxUploadBytes int64
	now            func() time.Time
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingest *usecase.IngestUseCase,
	ask *usecase.AskUseCase,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ingest:         ingest,
		ask:            ask,
		config:         cfg,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		now:            time.Now,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(allowCORS)

	r.Post("/api/upload", s.handleUpload)
	r.Post("/api/search", s.handleSearch)
	r.Get("/api/documents", s.handleListDocuments)
	r.Get("/api/documents/{id}", s.handleGetDocument)
	r.Delete("/api/documents/{id}", s.handleDeleteDocument)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", s.config.Addr()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// allowCORS lets browser front-ends on other origins call the API.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
