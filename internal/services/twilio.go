package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/mmlink/ispbot-backend/internal/config"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// whatsappBodyLimit is the longest body Twilio accepts for one WhatsApp message
const whatsappBodyLimit = 1600

type TwilioService struct {
	client *twilio.RestClient
	from   string // Format: "whatsapp:+14155238886"
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg config.TwilioConfig) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		client: client,
		from:   whatsappAddress(cfg.WhatsAppFrom),
	}, nil
}

// whatsappAddress adds the channel prefix Twilio expects when it is missing
func whatsappAddress(to string) string {
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	return "whatsapp:" + to
}

// Send delivers text to a user id such as "whatsapp:+959123456789". Long
// replies are split on line boundaries.
func (t *TwilioService) Send(ctx context.Context, userID, text string) error {
	for _, part := range splitMessage(text, whatsappBodyLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.SendWhatsAppMessage(userID, part); err != nil {
			return err
		}
	}
	return nil
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio
func (t *TwilioService) SendWhatsAppMessage(to string, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message: %v", err)
		return err
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	if resp.Sid != nil {
		log.Printf("✅ WhatsApp message sent! SID: %s", *resp.Sid)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring newlines
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// LogOutbound prints replies instead of sending them; used when Twilio is not configured
type LogOutbound struct{}

func (LogOutbound) Send(ctx context.Context, userID, text string) error {
	log.Printf("📤 [dry-run] to %s:\n%s", userID, text)
	return nil
}
