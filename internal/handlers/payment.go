package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mmlink/ispbot-backend/internal/middleware"
	"github.com/mmlink/ispbot-backend/internal/services"
)

// PaymentHandler lets operators review and verify payments
type PaymentHandler struct {
	operators *services.OperatorService
}

func NewPaymentHandler(operators *services.OperatorService) *PaymentHandler {
	return &PaymentHandler{operators: operators}
}

func (h *PaymentHandler) GetPendingPayments(c *fiber.Ctx) error {
	payments, err := h.operators.PendingPayments(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payments": payments})
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	payment, err := h.operators.Payment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	payment, err := h.operators.VerifyPayment(c.UserContext(), middleware.OperatorID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payment": payment})
}
