package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// TokenAuth guards write routes with a shared bearer token.
type TokenAuth struct {
	token string
}

// NewTokenAuth creates a new token middleware. An empty token disables the check.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: strings.TrimSpace(token)}
}

// Enabled reports whether a token is configured.
func (m *TokenAuth) Enabled() bool {
	return m.token != ""
}

// RequireToken rejects requests without the configured bearer token.
func (m *TokenAuth) RequireToken(c fiber.Ctx) error {
	if !m.Enabled() {
		return c.Next()
	}

	got := bearerToken(c.Get(fiber.HeaderAuthorization))
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "missing or invalid API token",
		})
	}
	return c.Next()
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
