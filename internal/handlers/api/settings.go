package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"companylens/internal/models"
	"companylens/internal/settings"
	"companylens/internal/validation"
)

// SettingsHandler reads and writes the diagnostics configuration.
type SettingsHandler struct {
	settings    *settings.Store
	profileBase string
}

// NewSettingsHandler creates a new API settings handler.
func NewSettingsHandler(store *settings.Store, profileBase string) *SettingsHandler {
	return &SettingsHandler{settings: store, profileBase: profileBase}
}

// GetDiagnostics returns the saved diagnostics configuration.
func (h *SettingsHandler) GetDiagnostics(c fiber.Ctx) error {
	return jsonSuccess(c, h.settings.Load(c.Context()))
}

// UpdateDiagnostics saves the diagnostics configuration. Open pages switch
// through the settings watch.
func (h *SettingsHandler) UpdateDiagnostics(c fiber.Ctx) error {
	var body struct {
		Enabled *bool  `json:"enabled"`
		Slug    string `json:"slug"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	cfg := h.settings.Load(c.Context())
	if body.Enabled != nil {
		cfg.Enabled = *body.Enabled
	}
	if body.Slug != "" {
		slug := validation.NormalizeSlug(body.Slug, h.profileBase)
		if !validation.ValidateSlug(slug) {
			return jsonError(c, fiber.StatusBadRequest, "slug must look like de/company-name")
		}
		cfg.Slug = slug
	}

	if err := h.settings.Save(c.Context(), cfg); err != nil {
		return writeError(c, err)
	}
	return jsonSuccess(c, models.DiagnosticsConfig{Enabled: cfg.Enabled, Slug: cfg.Slug})
}
