package api

import (
	"github.com/gofiber/fiber/v3"

	"companylens/internal/metrics"
	"companylens/internal/models"
)

// HealthHandler reports liveness.
type HealthHandler struct {
	backend string
	pages   metrics.PageCounter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(backend string, pages metrics.PageCounter) *HealthHandler {
	return &HealthHandler{backend: backend, pages: pages}
}

// Check returns the storage backend in use and the open page count.
func (h *HealthHandler) Check(c fiber.Ctx) error {
	return jsonSuccess(c, models.HealthResponse{
		Status:    "healthy",
		Storage:   h.backend,
		OpenPages: h.pages.Count(),
	})
}
