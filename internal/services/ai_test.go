package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmlink/ispbot-backend/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func answer(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
	}}
}

func TestOpenAIResponder(t *testing.T) {
	fake := &fakeCompleter{resp: answer("  We are open 9 to 5.  ")}
	r := &OpenAIResponder{client: fake, model: "gemini-2.0-flash", maxTokens: 200, timeout: time.Second}

	assert.Equal(t, "We are open 9 to 5.", r.Reply(context.Background(), "hours?"))
	assert.Equal(t, "gemini-2.0-flash", fake.req.Model)
	require.Len(t, fake.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	assert.Equal(t, "hours?", fake.req.Messages[1].Content)
}

func TestOpenAIResponderFallsBack(t *testing.T) {
	r := &OpenAIResponder{client: &fakeCompleter{err: errors.New("quota exceeded")}}
	assert.Equal(t, AIFallbackMessage, r.Reply(context.Background(), "hours?"))

	r = &OpenAIResponder{client: &fakeCompleter{resp: answer("   ")}}
	assert.Equal(t, AIFallbackMessage, r.Reply(context.Background(), "hours?"))

	r = &OpenAIResponder{client: &fakeCompleter{}}
	assert.Equal(t, AIFallbackMessage, r.Reply(context.Background(), "hours?"))
}

func TestNewOpenAIResponderWithoutKey(t *testing.T) {
	r := NewOpenAIResponder(config.AIConfig{})
	assert.IsType(t, StaticResponder{}, r)
	assert.Equal(t, AIFallbackMessage, r.Reply(context.Background(), "hi"))
}
