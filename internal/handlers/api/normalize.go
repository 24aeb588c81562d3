package api

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"companylens/internal/candidates"
	"companylens/internal/models"
	"companylens/internal/normalize"
)

// NormalizeHandler exposes the name normalizer and candidate generator.
type NormalizeHandler struct{}

// NewNormalizeHandler creates a new normalize handler.
func NewNormalizeHandler() *NormalizeHandler {
	return &NormalizeHandler{}
}

// Normalize analyzes the name query parameter.
func (h *NormalizeHandler) Normalize(c fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		return jsonError(c, fiber.StatusBadRequest, "name is required")
	}

	info := normalize.Analyze(name)
	return jsonSuccess(c, models.NormalizeResponse{
		Company:    info,
		Candidates: candidates.ForCompany(info),
	})
}
