package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/khata-ledger/khata/internal/auth"
)

const userLocal = "user"

// JWTAuth rejects requests without a valid, unexpired bearer session token.
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		sub, err := svc.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if errors.Is(err, auth.ErrTokenExpired) {
			return fiber.NewError(http.StatusUnauthorized, "session expired")
		}
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(userLocal, sub)
		return c.Next()
	}
}
