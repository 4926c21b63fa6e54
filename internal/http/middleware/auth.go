package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderTelegramSecret is set by Telegram on webhook deliveries when the
	// webhook was registered with a secret_token.
	HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"
	// HeaderAPIKey authorizes the admin routes.
	HeaderAPIKey = "X-API-Key"
)

func sameSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// TelegramSecret rejects webhook calls whose secret header does not match.
// An empty secret accepts every call, which is how local runs work. A
// mismatch is a 401 and not the webhook's usual 200: it never comes from
// Telegram.
func TelegramSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && !sameSecret(c.GetHeader(HeaderTelegramSecret), secret) {
			LoggerFrom(c).Warn().Msg("webhook secret mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "invalid webhook secret",
			})
			return
		}
		c.Next()
	}
}

// APIKey guards the admin routes with a static key. An empty key closes the
// routes entirely.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "forbidden",
				"message":    "admin API disabled",
			})
			return
		}
		if !sameSecret(c.GetHeader(HeaderAPIKey), key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "invalid API key",
			})
			return
		}
		c.Next()
	}
}
