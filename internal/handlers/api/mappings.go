package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"companylens/internal/mapping"
	"companylens/internal/models"
	"companylens/internal/normalize"
	"companylens/internal/pages"
	"companylens/internal/validation"
)

// MappingHandler reads and writes confirmed company to slug mappings.
type MappingHandler struct {
	store       *mapping.Store
	registry    *pages.Registry
	profileBase string
}

// NewMappingHandler creates a new API mapping handler.
func NewMappingHandler(store *mapping.Store, registry *pages.Registry, profileBase string) *MappingHandler {
	return &MappingHandler{store: store, registry: registry, profileBase: profileBase}
}

// errKeyNotNormalized rejects keys no resolver would ever look up.
var errKeyNotNormalized = errors.New("key must be a normalized company key, send the raw name as company")

// mappingKey returns key when it already is a normalized key, or the
// normalized form of company.
func mappingKey(key, company string) (string, error) {
	if k := strings.TrimSpace(key); k != "" {
		if normalize.Normalize(k).NormalizedKey != k {
			return "", errKeyNotNormalized
		}
		return k, nil
	}
	return normalize.Normalize(company).NormalizedKey, nil
}

// Get returns the mapping for ?key= or ?company=.
func (h *MappingHandler) Get(c fiber.Ctx) error {
	key, err := mappingKey(c.Query("key"), c.Query("company"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "key or company is required")
	}

	entry := h.store.Get(c.Context(), key)
	if entry == nil {
		return jsonError(c, fiber.StatusNotFound, "mapping not found")
	}
	return jsonSuccess(c, models.MappingResponse{Key: key, Entry: entry})
}

type mappingRequest struct {
	Key     string `json:"key"`
	Company string `json:"company"`
	Slug    string `json:"slug"`
	PageID  string `json:"page_id"`
}

// Confirm stores a confirmed slug. With page_id the page's identity is
// republished before the response is sent.
func (h *MappingHandler) Confirm(c fiber.Ctx) error {
	var body mappingRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	key, err := mappingKey(body.Key, body.Company)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "key or company is required")
	}
	slug := validation.NormalizeSlug(body.Slug, h.profileBase)
	if !validation.ValidateSlug(slug) {
		return jsonError(c, fiber.StatusBadRequest, "slug must look like de/company-name")
	}

	page, err := h.page(body.PageID)
	if err != nil {
		return pageError(c, err)
	}

	if page != nil {
		err = page.Resolver().ConfirmSlug(c.Context(), key, slug)
	} else {
		err = h.store.Set(c.Context(), key, slug, true)
	}
	if err != nil {
		return writeError(c, err)
	}

	return jsonSuccess(c, models.MappingResponse{Key: key, Entry: h.store.Get(c.Context(), key)})
}

// Reset removes the mapping so the generated candidate applies again.
func (h *MappingHandler) Reset(c fiber.Ctx) error {
	var body mappingRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	key, err := mappingKey(body.Key, body.Company)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "key or company is required")
	}

	page, err := h.page(body.PageID)
	if err != nil {
		return pageError(c, err)
	}

	if page != nil {
		err = page.Resolver().ResetSlug(c.Context(), key)
	} else {
		err = h.store.Delete(c.Context(), key)
	}
	if err != nil {
		return writeError(c, err)
	}
	return jsonSuccess(c, models.MappingResponse{Key: key})
}

func (h *MappingHandler) page(raw string) (*pages.Page, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pages.ErrPageNotFound
	}
	return h.registry.Get(id)
}
