package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"companylens/internal/badge"
	"companylens/internal/models"
	"companylens/internal/pages"
)

// PageHandler manages page contexts via JSON API.
type PageHandler struct {
	registry *pages.Registry
}

// NewPageHandler creates a new API page handler.
func NewPageHandler(registry *pages.Registry) *PageHandler {
	return &PageHandler{registry: registry}
}

// List returns all open pages.
func (h *PageHandler) List(c fiber.Ctx) error {
	list := h.registry.List()
	out := make([]models.PageResponse, 0, len(list))
	for _, p := range list {
		out = append(out, p.Response())
	}
	return jsonSuccess(c, out)
}

// Create opens a page context from a url, raw html, or both.
func (h *PageHandler) Create(c fiber.Ctx) error {
	var body struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	p, err := h.registry.Open(c.Context(), body.URL, body.HTML)
	if err != nil {
		return pageError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "ok",
		"data":   p.Response(),
	})
}

// Get returns the page and its current identity.
func (h *PageHandler) Get(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}
	p, err := h.registry.Get(id)
	if err != nil {
		return pageError(c, err)
	}
	return jsonSuccess(c, p.Response())
}

// Update pushes a new document body. The identity follows after the debounce window.
func (h *PageHandler) Update(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}

	var body struct {
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.registry.Update(id, body.HTML); err != nil {
		return pageError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "ok",
		"data":   fiber.Map{"id": id},
	})
}

// Resolve runs a resolution pass immediately.
func (h *PageHandler) Resolve(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}
	if _, err := h.registry.Flush(c.Context(), id); err != nil {
		return pageError(c, err)
	}
	p, err := h.registry.Get(id)
	if err != nil {
		return pageError(c, err)
	}
	return jsonSuccess(c, p.Response())
}

// Delete closes a page context.
func (h *PageHandler) Delete(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}
	if err := h.registry.Close(id); err != nil {
		return pageError(c, err)
	}
	return jsonSuccess(c, fiber.Map{"deleted": true})
}

// ClickBadge opens the preview overlay and returns the profile URL.
func (h *PageHandler) ClickBadge(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}
	p, err := h.registry.Get(id)
	if err != nil {
		return pageError(c, err)
	}

	preview, err := p.ClickBadge()
	if err != nil {
		if errors.Is(err, badge.ErrNotMounted) {
			return jsonError(c, fiber.StatusConflict, "no badge on this page")
		}
		return pageError(c, err)
	}
	return jsonSuccess(c, preview)
}

// SetBadge enables or disables the badge for one page.
func (h *PageHandler) SetBadge(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if body.Enabled == nil {
		return jsonError(c, fiber.StatusBadRequest, "enabled is required")
	}

	p, err := h.registry.Get(id)
	if err != nil {
		return pageError(c, err)
	}
	p.SetBadgeEnabled(*body.Enabled)
	return jsonSuccess(c, p.Response())
}

// Job returns the job posting of the page as Markdown.
func (h *PageHandler) Job(c fiber.Ctx) error {
	id, err := pageID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid page id")
	}
	p, err := h.registry.Get(id)
	if err != nil {
		return pageError(c, err)
	}

	job, err := p.JobDescription()
	if err != nil {
		if errors.Is(err, pages.ErrNoDescription) {
			return jsonError(c, fiber.StatusNotFound, "no job description found")
		}
		return pageError(c, err)
	}
	return jsonSuccess(c, job)
}
