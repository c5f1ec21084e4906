package middleware

import (
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
)

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// publicURL overrides the scheme and host seen by the server, which differ
// from what Twilio signed when running behind a proxy or tunnel.
func ValidateTwilioSignature(authToken, publicURL string) fiber.Handler {
	validator := client.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		// Get Twilio signature from header
		twilioSignature := c.Get("X-Twilio-Signature")
		if twilioSignature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		if authToken == "" {
			log.Println("❌ TWILIO_AUTH_TOKEN not set, rejecting webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		// Get all form parameters
		formParams := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			formParams[string(key)] = string(value)
		})

		if !validator.Validate(getFullURL(c, publicURL), formParams, twilioSignature) {
			log.Printf("⚠️ Invalid Twilio signature from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// getFullURL constructs the URL Twilio signed
func getFullURL(c *fiber.Ctx, publicURL string) string {
	if publicURL != "" {
		return strings.TrimSuffix(publicURL, "/") + c.OriginalURL()
	}
	return fmt.Sprintf("%s://%s%s", c.Protocol(), c.Hostname(), c.OriginalURL())
}
