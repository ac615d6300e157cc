/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus counters per route pattern
  5. CORS:       Cross-origin requests for the form frontend
  6. Throttle:   Per-client rate limit on /api writes (429)

ROUTE GROUPS:
  /healthz              Store health
  /metrics              Prometheus scrape endpoint
  /api/units/*          Units, history, export
  /api/responsibles     Responsible parties
  /api/records          Cross-unit search
  /api/sessions/*       Form sessions
  /                     Endpoint index

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options tune the router. The zero value allows any origin and does not
// throttle.
type Options struct {
	CORSOrigins []string
	SubmitRate  float64
	SubmitBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         300,
	}))

	writes := newThrottle(opts.SubmitRate, opts.SubmitBurst)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(writes.Middleware)

		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.CreateUnit)
			r.Get("/{code}", h.GetUnit)
			r.Get("/{code}/articulations", h.GetArticulations)
			r.Get("/{code}/history", h.GetHistory)
			r.Get("/{code}/history.xlsx", h.ExportHistory)
			r.Get("/{code}/latest", h.GetLatest)
		})

		r.Get("/responsibles", h.ListResponsibles)
		r.Get("/records", h.SearchRecords)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/load-latest", h.LoadLatest)
			r.Post("/{id}/new", h.StartNew)
			r.Post("/{id}/prefill", h.Prefill)
			r.Post("/{id}/submit", h.Submit)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexPage))
	})

	return r
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Historial IT PEI</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Historial IT PEI API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/units">/api/units</a> - Executing units</li>
<li><a href="/api/responsibles">/api/responsibles</a> - Responsible parties</li>
<li><a href="/api/records">/api/records</a> - Search review records</li>
<li>POST /api/sessions - Open a record form</li>
<li><a href="/healthz">/healthz</a> - Health</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`
