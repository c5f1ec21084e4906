package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mmlink/ispbot-backend/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// AIFallbackMessage is sent when the model cannot be reached
const AIFallbackMessage = "I'm having trouble answering that. Would you like to speak with a human operator? Type 'support' to reach our team."

// HelpMessage lists what the bot understands
const HelpMessage = `👋 Welcome to MMLink Internet!

Here's what I can help with:
• register - sign up for a new connection
• speedtest - check your internet speed
• history - see your recent speed tests
• pay - pay your monthly bill
• support - chat with our support team

Type 'cancel' at any time to stop what you're doing.`

const assistantPrompt = `You are the customer support assistant of MMLink, an internet service provider in Myanmar.
Answer briefly and politely in the language the customer used. If the question needs account
access or a technician, suggest typing 'support' to reach a human operator. Commands the
customer can type: register, speedtest, history, pay, support.`

// AIResponder answers free text that no workflow claimed. It never fails:
// errors degrade to AIFallbackMessage.
type AIResponder interface {
	Reply(ctx context.Context, text string) string
}

// chatCompleter is the slice of the OpenAI client used here
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIResponder talks to any OpenAI-compatible endpoint, Gemini included
type OpenAIResponder struct {
	client    chatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAIResponder creates a responder from config. Returns a StaticResponder
// when no API key is configured.
func NewOpenAIResponder(cfg config.AIConfig) AIResponder {
	if cfg.APIKey == "" {
		log.Println("⚠️ AI_API_KEY not set, AI answers disabled")
		return StaticResponder{}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &OpenAIResponder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

func (r *OpenAIResponder) Reply(ctx context.Context, text string) string {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistantPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		log.Printf("❌ AI request failed: %v", err)
		return AIFallbackMessage
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Println("⚠️ AI returned an empty answer")
		return AIFallbackMessage
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// StaticResponder always answers with the fallback text
type StaticResponder struct{}

func (StaticResponder) Reply(context.Context, string) string { return AIFallbackMessage }
