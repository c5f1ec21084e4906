package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// MessageSubmitter queues an inbound message for asynchronous handling
type MessageSubmitter interface {
	Submit(userID, text string) error
}

// MessageProcessor handles a message synchronously and returns the reply
type MessageProcessor interface {
	Handle(ctx context.Context, userID, text string) string
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	queue     MessageSubmitter
	processor MessageProcessor
	timeout   time.Duration
}

// NewWhatsAppHandler creates a new WhatsApp handler. timeout bounds the
// synchronous handling done by the test webhook.
func NewWhatsAppHandler(queue MessageSubmitter, processor MessageProcessor, timeout time.Duration) *WhatsAppHandler {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &WhatsAppHandler{
		queue:     queue,
		processor: processor,
		timeout:   timeout,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // WhatsApp number (whatsapp:+959123456789)
	To         string `form:"To"`   // Your Twilio number
	Body       string `form:"Body"` // Message text
	NumMedia   string `form:"NumMedia"`
}

// HandleWebhook acknowledges the webhook immediately and handles the message
// in the background; the reply goes out through the outbound sender.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	from := strings.TrimSpace(payload.From)
	body := strings.TrimSpace(payload.Body)

	// Status callbacks and media-only messages carry no text
	if from == "" || body == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp Message from %s: %s", from, body)

	if err := h.queue.Submit(from, body); err != nil {
		log.Printf("⚠️ Could not queue message from %s: %v", from, err)
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is used for testing without Twilio
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook processes a message synchronously and returns the reply
// in the response instead of sending it (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	from := payload.From
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}

	log.Printf("🧪 Test webhook received from %s: %s", from, payload.Message)
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	response := h.processor.Handle(ctx, from, payload.Message)
	log.Printf("📤 Test response generated: %s", response)

	return c.JSON(fiber.Map{
		"success":  true,
		"response": response,
	})
}
