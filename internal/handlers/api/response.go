package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"companylens/internal/mapping"
	"companylens/internal/pages"
	"companylens/internal/resolver"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// pageID parses the :id route parameter.
func pageID(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// pageError maps registry and fetch errors to responses.
func pageError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pages.ErrPageNotFound):
		return jsonError(c, fiber.StatusNotFound, "page not found")
	case errors.Is(err, pages.ErrNoContent):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, pages.ErrTooManyPages):
		return jsonError(c, fiber.StatusTooManyRequests, "too many open pages")
	case errors.Is(err, pages.ErrFetchBlocked):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, pages.ErrFetchFailed), errors.Is(err, pages.ErrTooLarge):
		return jsonError(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, pages.ErrNotFetched):
		return jsonError(c, fiber.StatusConflict, err.Error())
	}
	slog.Error("page operation failed", "error", err)
	return jsonError(c, fiber.StatusInternalServerError, "page operation failed")
}

// writeError maps mapping and settings write errors to responses. Anything
// that is not a validation error is a storage failure.
func writeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, mapping.ErrEmptyKey), errors.Is(err, resolver.ErrEmptySlug):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	slog.Warn("storage write failed", "error", err)
	return jsonError(c, fiber.StatusServiceUnavailable, "storage unavailable")
}
