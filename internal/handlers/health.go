package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StoreProbe reports on the backing store
type StoreProbe interface {
	Ping(ctx context.Context) error
	CountSessions(ctx context.Context) (int64, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Storage  string
	WhatsApp bool
	AI       bool
	store    StoreProbe
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storageKind string, whatsapp, ai bool, store StoreProbe) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Storage:  storageKind,
		WhatsApp: whatsapp,
		AI:       ai,
		store:    store,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := fiber.StatusOK
	dbOK := true
	if err := h.store.Ping(ctx); err != nil {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
		dbOK = false
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"version": h.Version,
		"services": fiber.Map{
			"database": dbOK,
			"twilio":   h.WhatsApp,
			"ai":       h.AI,
		},
	})
}

// Info describes the running service
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	sessions, err := h.store.CountSessions(ctx)
	if err != nil {
		sessions = -1
	}

	return c.JSON(fiber.Map{
		"service":  "MMLink ISP Bot",
		"version":  h.Version,
		"storage":  h.Storage,
		"sessions": sessions,
		"whatsapp": fiber.Map{"configured": h.WhatsApp},
		"endpoints": fiber.Map{
			"health":        "/health",
			"webhook":       "/webhook/whatsapp",
			"test_whatsapp": "/test/whatsapp",
			"operators":     "/api/operators",
		},
	})
}
