package middleware

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "listener-key"
	testSecret = "listener-secret"
)

func newWebhookApp() *fiber.App {
	app := fiber.New()
	app.Put("/hook", WebhookAuth(testAPIKey, testSecret), func(c *fiber.Ctx) error {
		if !IsWebhookAuthenticated(c) {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func signedRequest(body []byte, apiKey, timestamp string, signature []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/hook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", hex.EncodeToString(signature))
	return req
}

func TestWebhookAuthAccepts(t *testing.T) {
	app := newWebhookApp()

	body := []byte(`{"status":"completed","tx_hash":"0xabc"}`)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := ComputeWebhookSignature(testSecret, body, timestamp)

	resp, err := app.Test(signedRequest(body, testAPIKey, timestamp, signature))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookAuthRejectsWrongKey(t *testing.T) {
	app := newWebhookApp()

	body := []byte(`{}`)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := ComputeWebhookSignature(testSecret, body, timestamp)

	resp, err := app.Test(signedRequest(body, "wrong-key", timestamp, signature))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAuthRejectsStaleTimestamp(t *testing.T) {
	app := newWebhookApp()

	body := []byte(`{}`)
	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).UnixMilli(), 10)
	// The signature itself is valid for the stale timestamp.
	signature := ComputeWebhookSignature(testSecret, body, stale)

	resp, err := app.Test(signedRequest(body, testAPIKey, stale, signature))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAuthRejectsTamperedBody(t *testing.T) {
	app := newWebhookApp()

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := ComputeWebhookSignature(testSecret, []byte(`{"status":"completed"}`), timestamp)

	resp, err := app.Test(signedRequest([]byte(`{"status":"failed"}`), testAPIKey, timestamp, signature))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAuthRejectsBadSignatureEncoding(t *testing.T) {
	app := newWebhookApp()

	body := []byte(`{}`)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req := httptest.NewRequest(http.MethodPut, "/hook", bytes.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", "not-hex!")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestEitherAuthBranchesOnAPIKeyHeader(t *testing.T) {
	webhookCalled := false
	jwtCalled := false

	webhook := func(c *fiber.Ctx) error {
		webhookCalled = true
		return c.SendStatus(fiber.StatusOK)
	}
	jwt := func(c *fiber.Ctx) error {
		jwtCalled = true
		return c.SendStatus(fiber.StatusOK)
	}

	app := fiber.New()
	app.Put("/either", EitherAuth(webhook, jwt))

	req := httptest.NewRequest(http.MethodPut, "/either", nil)
	req.Header.Set("X-API-Key", "anything")
	_, err := app.Test(req)
	require.NoError(t, err)
	assert.True(t, webhookCalled)
	assert.False(t, jwtCalled)

	webhookCalled = false
	_, err = app.Test(httptest.NewRequest(http.MethodPut, "/either", nil))
	require.NoError(t, err)
	assert.True(t, jwtCalled)
	assert.False(t, webhookCalled)
}
