package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Snapshot-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/scoring", func(r chi.Router) {
			r.Post("/score", h.HandleScoreContacts)
			r.Get("/insights", h.HandleGetInsights)
			r.Post("/patterns", h.HandleAnalyzePatterns)
			r.Post("/export", h.HandleExport)
			r.Get("/runs", h.HandleListRuns)
		})

		r.Route("/opportunities", func(r chi.Router) {
			r.Get("/{id}/prediction", h.HandlePredictDeal)
		})
	})

	return r
}
