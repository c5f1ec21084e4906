package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mmlink/ispbot-backend/internal/middleware"
	"github.com/mmlink/ispbot-backend/internal/services"
)

// SupportHandler serves the operator console API
type SupportHandler struct {
	operators *services.OperatorService
}

func NewSupportHandler(operators *services.OperatorService) *SupportHandler {
	return &SupportHandler{operators: operators}
}

type registerOperatorRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type messageRequest struct {
	Message string `json:"message"`
}

func (h *SupportHandler) Register(c *fiber.Ctx) error {
	var req registerOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	op, err := h.operators.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"operator": op})
}

func (h *SupportHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	token, op, err := h.operators.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "operator": op})
}

func (h *SupportHandler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	op, err := h.operators.UpdateStatus(c.UserContext(), middleware.OperatorID(c), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"operator": op})
}

func (h *SupportHandler) ActiveChats(c *fiber.Ctx) error {
	chats, err := h.operators.ActiveChats(c.UserContext(), middleware.OperatorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

func (h *SupportHandler) PendingChats(c *fiber.Ctx) error {
	chats, err := h.operators.PendingChats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

func (h *SupportHandler) AcceptChat(c *fiber.Ctx) error {
	conv, err := h.operators.AcceptChat(c.UserContext(), middleware.OperatorID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"chat": conv})
}

func (h *SupportHandler) SendMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.operators.SendMessage(c.UserContext(), middleware.OperatorID(c), c.Params("id"), req.Message); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *SupportHandler) EndChat(c *fiber.Ctx) error {
	if err := h.operators.EndChat(c.UserContext(), middleware.OperatorID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *SupportHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.operators.Customer(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"customer": customer})
}
