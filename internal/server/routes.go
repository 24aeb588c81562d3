package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"companylens/internal/handlers/api"
	"companylens/internal/mapping"
	"companylens/internal/middleware"
	"companylens/internal/pages"
	"companylens/internal/settings"
)

// Deps are the services the routes are served from.
type Deps struct {
	Backend  string
	Registry *pages.Registry
	Mappings *mapping.Store
	Settings *settings.Store
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Deps) {
	// Initialize handlers
	healthHandler := api.NewHealthHandler(deps.Backend, deps.Registry)
	normalizeHandler := api.NewNormalizeHandler()
	pageHandler := api.NewPageHandler(deps.Registry)
	mappingHandler := api.NewMappingHandler(deps.Mappings, deps.Registry, s.Cfg.ProfileBaseURL)
	settingsHandler := api.NewSettingsHandler(deps.Settings, s.Cfg.ProfileBaseURL)

	auth := middleware.NewTokenAuth(s.Cfg.APIToken)
	write := auth.RequireToken

	s.App.Get("/healthz", healthHandler.Check)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	apiGroup := s.App.Group("/api")
	apiGroup.Get("/normalize", normalizeHandler.Normalize)

	// Page contexts
	apiGroup.Get("/pages", pageHandler.List)
	apiGroup.Post("/pages", write, pageHandler.Create)
	apiGroup.Get("/pages/:id", pageHandler.Get)
	apiGroup.Put("/pages/:id", write, pageHandler.Update)
	apiGroup.Delete("/pages/:id", write, pageHandler.Delete)
	apiGroup.Post("/pages/:id/resolve", write, pageHandler.Resolve)
	apiGroup.Post("/pages/:id/badge/click", write, pageHandler.ClickBadge)
	apiGroup.Put("/pages/:id/badge", write, pageHandler.SetBadge)
	apiGroup.Get("/pages/:id/job", pageHandler.Job)

	// Mappings
	apiGroup.Get("/mappings", mappingHandler.Get)
	apiGroup.Post("/mappings/confirm", write, mappingHandler.Confirm)
	apiGroup.Post("/mappings/reset", write, mappingHandler.Reset)

	// Settings
	apiGroup.Get("/settings/diagnostics", settingsHandler.GetDiagnostics)
	apiGroup.Put("/settings/diagnostics", write, settingsHandler.UpdateDiagnostics)
}
