package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/kozaktomas/face-registry/internal/web/middleware"
)

// Dependencies are the collaborators injected into the server at startup.
type Dependencies struct {
	Submitter store.Submitter
	Records   store.Reader  // nil disables the records endpoint
	Camera    camera.Device // nil disables the camera source
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	surfaces   *handlers.SurfaceManager
	deps       Dependencies
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, allowedOrigins string, deps Dependencies) *Server {
	r := chi.NewRouter()

	opts := registration.Options{
		Submitter: deps.Submitter,
		Camera:    deps.Camera,
		Encoder:   imaging.NewEncoder(cfg.Camera.Quality),
		Files:     imaging.NewFileDecoder(cfg.Camera.Quality, cfg.Upload.MaxBytes, cfg.Upload.MaxDimension),
	}

	s := &Server{
		config:   cfg,
		router:   r,
		surfaces: handlers.NewSurfaceManager(opts, cfg.Web.SurfaceIdleTimeout, cfg.Web.AllSources),
		deps:     deps,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.ParseAllowedOrigins(allowedOrigins)))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for preview streams and uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes every surface, which releases cameras and ends preview streams,
// then waits for in-flight requests such as submits to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down web server")

	s.surfaces.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
