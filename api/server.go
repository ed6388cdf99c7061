/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     Structured request logging (logrus)
  4. CORS:       Cross-origin requests
  5. Metrics:    Request counters for /metrics
  6. API keys:   Service key on /api, admin key on privileged routes

ROUTE GROUPS:
  /api/credit-lines/*   Credit line lifecycle, movements, ledger queries
  /api/admin/*          Privileged operations (reset)
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth and logging middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries the collaborator-boundary configuration: keys for
// the authorization decision and origins for CORS.
type RouterConfig struct {
	Keys           Keys
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if h.Log != nil {
		r.Use(RequestLogger(h.Log))
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireKey(cfg.Keys))
		r.Use(Metrics())

		r.Route("/credit-lines", func(r chi.Router) {
			r.Get("/", h.ListCreditLines)
			r.Post("/", h.CreateCreditLine)
			r.Get("/{id}", h.GetCreditLine)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Post("/{id}/draw", h.DrawCreditLine)
			r.Post("/{id}/repay", h.RepayCreditLine)

			// Privileged lifecycle transitions
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(cfg.Keys))
				r.Post("/{id}/suspend", h.SuspendCreditLine)
				r.Post("/{id}/close", h.CloseCreditLine)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(cfg.Keys))
			r.Post("/reset", h.ResetStores)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// NewLogger builds the default structured logger for the API layer.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
