package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const webhookContextKey = "webhookAuthenticated"

// webhookReplayWindow bounds how stale a webhook timestamp may be.
const webhookReplayWindow = 5 * time.Minute

// WebhookAuth verifies the event listener's HMAC-authenticated
// callbacks: shared API key, a timestamp inside the replay window and
// an HMAC-SHA256 signature over body + timestamp.
func WebhookAuth(apiKey, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := c.Get("X-API-Key")
		if apiKey == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}

		timestamp := c.Get("X-Timestamp")
		ms, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid timestamp")
		}
		drift := time.Since(time.UnixMilli(ms))
		if drift < 0 {
			drift = -drift
		}
		if drift > webhookReplayWindow {
			return fiber.NewError(fiber.StatusUnauthorized, "timestamp outside replay window")
		}

		signature, err := hex.DecodeString(c.Get("X-Signature"))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature encoding")
		}

		expected := ComputeWebhookSignature(secret, c.Body(), timestamp)
		if !hmac.Equal(signature, expected) {
			return fiber.NewError(fiber.StatusUnauthorized, "signature mismatch")
		}

		c.Locals(webhookContextKey, true)
		return c.Next()
	}
}

// ComputeWebhookSignature returns the raw HMAC-SHA256 of body+timestamp.
// Shared with the listener's webhook client so both sides agree on the
// exact byte sequence being signed.
func ComputeWebhookSignature(secret string, body []byte, timestamp string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return mac.Sum(nil)
}

// IsWebhookAuthenticated reports whether the request passed WebhookAuth.
func IsWebhookAuthenticated(c *fiber.Ctx) bool {
	authed, _ := c.Locals(webhookContextKey).(bool)
	return authed
}

// EitherAuth routes a request through webhook authentication when an
// X-API-Key header is present and bearer-JWT authentication otherwise.
// Used on the order status endpoint, which serves both the event
// listener (completion) and end users (close).
func EitherAuth(webhook, jwt fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-API-Key") != "" {
			return webhook(c)
		}
		return jwt(c)
	}
}
