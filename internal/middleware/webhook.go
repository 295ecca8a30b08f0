package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"travelhub/api/internal/security"
)

const webhookReplayWindow = 24 * time.Hour

// WebhookSignature verifies the HMAC signature of a gateway callback and
// rejects bodies already seen within the replay window. A body whose handler
// answers non-2xx is forgotten again so the gateway's retry is accepted.
func WebhookSignature(secret string, redisClient redis.Cmdable, observe DecisionObserver) gin.HandlerFunc {
	reject := func(c *gin.Context, status int, code string) {
		if observe != nil {
			observe(code)
		}
		c.AbortWithStatusJSON(status, gin.H{"error": code})
	}

	return func(c *gin.Context) {
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			reject(c, http.StatusBadRequest, "invalid_body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

		if !security.ValidatePayloadSignature(secret, rawBody, c.GetHeader(security.HeaderWebhookSignature)) {
			reject(c, http.StatusUnauthorized, "invalid_signature")
			return
		}

		digest := sha256.Sum256(rawBody)
		key := "webhook:seen:" + hex.EncodeToString(digest[:])
		fresh, err := redisClient.SetNX(c.Request.Context(), key, "1", webhookReplayWindow).Result()
		if err != nil {
			reject(c, http.StatusServiceUnavailable, "replay_check_unavailable")
			return
		}
		if !fresh {
			reject(c, http.StatusConflict, "replay_detected")
			return
		}

		c.Next()

		if status := c.Writer.Status(); status < 200 || status > 299 {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
			defer cancel()
			// best effort: if this fails the retry sees 409 and the cron reconcile picks the booking up
			_ = redisClient.Del(ctx, key).Err()
		}
	}
}
