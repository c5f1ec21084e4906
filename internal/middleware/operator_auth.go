package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mmlink/ispbot-backend/internal/services"
)

// OperatorIDKey is the fiber.Locals key holding the authenticated operator id
const OperatorIDKey = "operator_id"

// TokenParser verifies operator bearer tokens
type TokenParser interface {
	ParseToken(raw string) (*services.OperatorClaims, error)
}

// RequireOperator rejects requests without a valid operator token
func RequireOperator(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims, err := parser.ParseToken(strings.TrimSpace(token))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(OperatorIDKey, claims.OperatorID)
		return c.Next()
	}
}

// OperatorID returns the id stored by RequireOperator
func OperatorID(c *fiber.Ctx) string {
	id, _ := c.Locals(OperatorIDKey).(string)
	return id
}
