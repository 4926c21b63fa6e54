package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/services"
)

// TelegramWebhook returns the webhook endpoint for bot. It answers 200 in
// every case, including a body that is not an Update and a failed
// dispatch. A redelivered update answers {"ok":true,"duplicate":true}.
func (h *Handlers) TelegramWebhook(bot string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := middleware.LoggerFrom(c).With().Str("bot", bot).Logger()

		var u tgbotapi.Update
		if err := c.ShouldBindJSON(&u); err != nil {
			lg.Warn().Err(err).Msg("webhook body is not an update")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		if h.d.Dispatcher == nil {
			lg.Warn().Int("update_id", u.UpdateID).Msg("no dispatcher; update dropped")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		// Other dispatch errors are logged by the dispatcher with the update kind.
		if err := h.d.Dispatcher.Dispatch(c.Request.Context(), bot, u); errors.Is(err, services.ErrDuplicateUpdate) {
			lg.Debug().Int("update_id", u.UpdateID).Msg("duplicate update")
			c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
