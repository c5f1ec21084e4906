package routes

import (
	"log"

	"github.com/mmlink/ispbot-backend/internal/config"
	"github.com/mmlink/ispbot-backend/internal/handlers"
	"github.com/mmlink/ispbot-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything the routes dispatch to
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Support  *handlers.SupportHandler
	Payments *handlers.PaymentHandler
	Health   *handlers.HealthHandler
	Tokens   middleware.TokenParser
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/", h.Health.Info)
	app.Get("/health", h.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if cfg.IsDevelopment() || cfg.DisableWebhookValidation {
		// Development: Skip validation for ngrok
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
	} else {
		// Production: Validate webhook signature
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.PublicURL), h.WhatsApp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if cfg.IsDevelopment() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	}

	// ========== OPERATOR ROUTES ==========
	api := app.Group("/api")

	operators := api.Group("/operators")
	operators.Post("/register", h.Support.Register)
	operators.Post("/login", h.Support.Login)

	auth := middleware.RequireOperator(h.Tokens)
	operators.Put("/status", auth, h.Support.UpdateStatus)
	operators.Get("/chats", auth, h.Support.ActiveChats)

	chats := api.Group("/chats", auth)
	chats.Get("/pending", h.Support.PendingChats)
	chats.Post("/:id/accept", h.Support.AcceptChat)
	chats.Post("/:id/messages", h.Support.SendMessage)
	chats.Post("/:id/end", h.Support.EndChat)

	api.Get("/customers/:id", auth, h.Support.GetCustomer)

	payments := api.Group("/payments", auth)
	payments.Get("/pending", h.Payments.GetPendingPayments)
	payments.Get("/:id", h.Payments.GetPayment)
	payments.Post("/:id/verify", h.Payments.VerifyPayment)
}
