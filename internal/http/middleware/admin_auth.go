package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"storekriti/internal/auth"
	"storekriti/internal/config"
)

// ClaimsKey is the fiber.Locals key holding the verified *auth.Claims.
const ClaimsKey = "admin_claims"

// AdminAuth rejects requests without a valid admin bearer token.
// The secret is read on every request so config reloads apply immediately.
func AdminAuth(cfg *config.Config, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return unauthorized(c)
		}

		claims, err := auth.NewIssuer(cfg.AdminJWTSecret).Verify(token)
		if err != nil {
			logger.Debug("Rejected admin token",
				slog.String("path", c.Path()),
				slog.Any("error", err))
			return unauthorized(c)
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"ok":      false,
		"message": "Unauthorized",
	})
}
