/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the ops dashboard

ROUTE GROUPS:
  /api/guilds/{guild}/*  Member-facing operations, scoped to one guild
  /api/admin/*           Admin operations
  /metrics               Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. The process is expected to sit behind the
  chat adapter, which owns identity; the API trusts the member ids it is
  handed.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/guilds/{guild}", func(r chi.Router) {
			r.Post("/status", h.SubmitStatus)

			r.Route("/leaves", func(r chi.Router) {
				r.Post("/", h.RequestLeave)
				r.Post("/{id}/approve", h.ApproveLeave)
				r.Post("/{id}/deny", h.DenyLeave)
				r.Post("/{id}/discussion", h.OpenDiscussion)
			})

			r.Route("/members/{id}/reports", func(r chi.Router) {
				r.Get("/weekly", h.WeeklyReport)
				r.Get("/monthly", h.MonthlyReport)
				r.Get("/range", h.RangeReport)
			})
			r.Get("/reports/weekly", h.TeamWeeklyReport)

			r.Post("/events/role-change", h.RoleChange)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/guilds/{guild}/cache/refresh", h.RefreshEligibility)
			r.Post("/warnings/reset", h.ResetWarnings)
			r.Post("/leaves/purge", h.PurgeLeaveRequests)
			r.Post("/bonus-days", h.GrantBonusDays)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
