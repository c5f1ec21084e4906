package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/mmlink/ispbot-backend/internal/services"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// respondError maps service errors to HTTP responses
func respondError(c *fiber.Ctx, err error) error {
	var be *services.BusinessError
	switch {
	case errors.As(err, &be):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": be.Message, "code": be.Code})
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("❌ %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
