package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// TokenAuth guards API routes with a shared bearer token. Identity and
// sessions belong to the calling layer; this only keeps anonymous clients out.
type TokenAuth struct {
	token []byte
}

// NewTokenAuth creates a token guard. An empty token disables the check.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: []byte(token)}
}

// Enabled reports whether requests must carry the token.
func (m *TokenAuth) Enabled() bool {
	return len(m.token) > 0
}

// RequireToken rejects requests without the configured bearer token.
func (m *TokenAuth) RequireToken(c fiber.Ctx) error {
	if !m.Enabled() {
		return c.Next()
	}

	got := bearerToken(c.Get(fiber.HeaderAuthorization))
	if got == "" || subtle.ConstantTimeCompare([]byte(got), m.token) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "unauthorized",
		})
	}
	return c.Next()
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
