package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mmlink/ispbot-backend/internal/services"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAuthToken = "12345"
	testPublicURL = "https://bot.example.com"
)

// sign reproduces Twilio's HMAC-SHA1 request signature
func sign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature(testAuthToken, testPublicURL), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func webhookRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	return req
}

func TestTwilioSignature(t *testing.T) {
	form := url.Values{"From": {"whatsapp:+959123456789"}, "Body": {"register"}}
	app := webhookApp()

	resp, err := app.Test(webhookRequest(form, sign(testAuthToken, testPublicURL+"/webhook/whatsapp", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(webhookRequest(form, sign("wrong", testPublicURL+"/webhook/whatsapp", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(webhookRequest(form, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireOperator(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := services.NewOperatorService(store, store, store, services.LogOutbound{}, "secret", time.Hour)

	app := fiber.New()
	app.Get("/me", RequireOperator(ops), func(c *fiber.Ctx) error {
		return c.SendString(OperatorID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	ctx := context.Background()
	op, err := ops.Register(ctx, "Su Su", "susu@mmlink.test", "password123")
	require.NoError(t, err)
	token, _, err := ops.Login(ctx, "susu@mmlink.test", "password123")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, op.OperatorID, string(body))
}
