package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/kozaktomas/face-registry/internal/web/middleware"
	"github.com/kozaktomas/face-registry/internal/web/static"
)

func (s *Server) setupRoutes() {
	surfacesHandler := handlers.NewSurfacesHandler(s.surfaces, s.config.Store.Timeout, s.config.Upload.MaxBytes)
	recordsHandler := handlers.NewRecordsHandler(s.deps.Records)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// The live preview streams until the camera is released and is not subject to the request timeout
		r.Get("/surfaces/{id}/camera/preview", surfacesHandler.Preview)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(constants.RequestTimeout))

			r.Get("/config", configHandler.Get)

			// Entry surfaces
			r.Post("/surfaces", surfacesHandler.Create)
			r.Get("/surfaces/{id}", surfacesHandler.Get)
			r.Delete("/surfaces/{id}", surfacesHandler.Delete)
			r.Post("/surfaces/{id}/camera/start", surfacesHandler.StartCamera)
			r.Post("/surfaces/{id}/camera/capture", surfacesHandler.Capture)
			r.Post("/surfaces/{id}/camera/release", surfacesHandler.ReleaseCamera)
			r.Post("/surfaces/{id}/image", surfacesHandler.SetImage)
			r.Get("/surfaces/{id}/image", surfacesHandler.GetImage)
			r.Put("/surfaces/{id}/label", surfacesHandler.SetLabel)
			r.Post("/surfaces/{id}/submit", surfacesHandler.Submit)

			// Stored records
			r.Get("/records", recordsHandler.List)
		})
	})

	s.router.With(middleware.SecurityHeaders()).Get("/*", s.serveStatic)
}

// serveStatic serves the embedded registration page and its assets.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(static.IndexPage())
		return
	}
	http.FileServerFS(static.FS()).ServeHTTP(w, r)
}
