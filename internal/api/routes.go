package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/cohort-match/internal/pkg/httputil"
)

// SetupRoutes configures all API routes. hc may be nil, in which case only
// the liveness probe is served under /health.
func SetupRoutes(h *Handlers, hc *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "cohort-match-v1.0")
			next.ServeHTTP(w, req)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health checks
	if hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/live", hc.HandleLiveness)
		r.Get("/health/ready", hc.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			httputil.OK(w, map[string]string{"status": "healthy"})
		})
	}

	r.Route("/api", func(r chi.Router) {
		// Matching
		r.Post("/match/run", h.RunAutoMatch)
		r.Post("/match/manual", h.CreateManualPairing)
		r.Get("/match/stats", h.MatchStats)
		r.Get("/match/unmatched/{side}", h.Unmatched)
		r.Get("/match/cohorts/{cohort}", h.PairingsByCohort)

		// Manual overrides
		r.Get("/overrides", h.ListOverrides)
		r.Post("/overrides/restore", h.RestoreOverrides)

		// Survey intake
		r.Post("/import/{side}", h.Import)

		// Change metrics
		r.Get("/analysis", h.Analysis)
	})

	return r
}
