package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/protocols", s.handleListProtocols)
		r.Get("/protocols/{name}", s.handleGetProtocol)
		r.Post("/validate", s.handleValidate)

		r.Get("/catalog", s.handleGetCatalog)
		r.Get("/catalog/revisions", s.handleListRevisions)

		r.Get("/rejections", s.handleListRejections)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Put("/catalog", s.handleReplaceCatalog)
		})
	})

	return r
}

// handleHealth returns the server status and the size of the active catalog.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if reg := s.holder.Registry(); reg != nil {
		status["protocols"] = reg.Len()
	} else {
		status["status"] = "degraded"
		status["protocols"] = 0
	}
	writeJSON(w, http.StatusOK, status)
}
