package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"

	"github.com/geowander/citytour/internal/overlay"
)

// Deps carries the collaborators the route handlers need. Redis may be
// nil; the health check then skips it.
type Deps struct {
	Sessions *Registry
	Broker   *Broker
	Admin    *AdminStore
	Overlay  *overlay.Store
	Reports  *ReportStore
	DB       *sql.DB
	Redis    *redis.Client
	SPADir   string
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CityTour API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, deps.DB, deps.Redis))

	// Tour sessions. Creation takes the hosting page's query string
	// parameters; every later call authenticates with the session
	// bearer token.
	r.Post("/api/sessions", handleSessionCreate(logger, deps.Sessions))

	r.Route("/api/session", func(r chi.Router) {
		// EventSource cannot set headers, so the stream authenticates
		// via query parameter instead of the session middleware.
		r.Get("/events", handleEvents(deps.Sessions, deps.Broker))

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware(deps.Sessions))
			r.Delete("/", handleSessionDelete(deps.Sessions))
			r.Get("/state", handleState())
			r.Get("/tour", handleTour())
			r.Post("/nav/next", handleNext())
			r.Post("/nav/previous", handlePrevious())
			r.Post("/nav/jump", handleJump())
			r.Post("/quiz/complete", handleQuizComplete())
			r.Post("/landmarks", handleLandmarkCreate(logger))
			r.Post("/tour/upload", handleTourUpload(logger))
			r.Post("/tour/reload", handleTourReload())
		})
	})

	// Admin surface. Cookie sessions, bcrypt credentials.
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", handleAdminLogin(deps.Admin))
		r.Post("/logout", handleAdminLogout(deps.Admin))

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(deps.Admin))
			r.Get("/me", handleAdminMe())
			r.Get("/reports", handleAdminReports(deps.Reports))
			r.Delete("/overlay", handleAdminOverlayClear(logger, deps.Overlay))
		})
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
