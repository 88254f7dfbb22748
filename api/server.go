/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for tooling frontends

ROUTE GROUPS:
  /api/bank/{requester}/*   Deposit, withdraw, browse for one session
  /api/admin/*              Operator audit and purge

SECURITY NOTE:
  No authentication middleware. In production this surface sits behind the
  game host's own session layer; the requester id in the path is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
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
		// Per-session bank routes. {requester} is the live session id, not
		// the storage key: the engine resolves and re-resolves it itself.
		r.Route("/bank/{requester}", func(r chi.Router) {
			r.Post("/deposit", h.DepositAll)
			r.Post("/deposit/{category}", h.DepositCategory)
			r.Post("/withdraw", h.WithdrawAll)
			r.Post("/withdraw/{category}", h.WithdrawCategory)
			r.Post("/withdraw/item/{item}", h.WithdrawItem)
			r.Get("/summary", h.Summary)
			r.Get("/categories/{category}", h.CategoryPage)
		})

		// Operator routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/audit", h.AuditSummary)
			r.Post("/purge", h.PurgeAudit)
		})
	})

	return r
}
