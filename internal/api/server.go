package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runstage/runstage/internal/manager"
)

//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/runstage/runstage/internal/manager Manager

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the bearer token clients must present. Empty disables auth.
	APIKey string
	// ManagerKind is reported by /healthz.
	ManagerKind string
	// MaxUploadBytes caps staged file uploads. Zero means the default.
	MaxUploadBytes int64
}

// Server exposes a job manager over HTTP.
type Server struct {
	config    Config
	manager   manager.Manager
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, mgr manager.Manager, logger *slog.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 1 << 30
	}
	return &Server{
		config:    config,
		manager:   mgr,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the fully routed HTTP handler. Useful for serving under
// a test server.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // Large staged downloads
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/jobs", s.handleSetup)
		r.Get("/jobs/{jobID}", s.handleStatus)
		r.Post("/jobs/{jobID}/launch", s.handleLaunch)
		r.Post("/jobs/{jobID}/kill", s.handleKill)
		r.Delete("/jobs/{jobID}", s.handleClean)
		r.Get("/jobs/{jobID}/stdout", s.handleStdout)
		r.Get("/jobs/{jobID}/stderr", s.handleStderr)
		r.Post("/jobs/{jobID}/files/{subarea}", s.handleUpload)
		r.Get("/jobs/{jobID}/files/{subarea}", s.handleDownload)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
