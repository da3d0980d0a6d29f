package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/polybot/internal/bot"
	"github.com/example/polybot/internal/cache"
	"github.com/example/polybot/internal/logging"
	"github.com/example/polybot/internal/metrics"
)

// RegisterBotRoutes wires the Telegram webhook. Updates are handled
// synchronously; the delivery is acknowledged once handling finished.
func RegisterBotRoutes(router *gin.Engine, token string, handler bot.MessageHandler, tracker cache.UpdateTracker, logger *zap.Logger) {
	registerCommon(router)
	if tracker == nil {
		tracker = cache.NopTracker{}
	}
	logger = logger.Named("webhook")

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Ok")
	})

	// Telegram tokens contain ':' so the token is matched as a parameter.
	router.POST("/:token/", func(c *gin.Context) {
		if c.Param("token") != token {
			c.String(http.StatusNotFound, "not found")
			return
		}

		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			c.String(http.StatusBadRequest, "invalid update")
			return
		}

		ctx := c.Request.Context()
		first, err := tracker.MarkSeen(ctx, update.UpdateID)
		if err != nil {
			logging.WithOperation(logger, "webhook.mark_seen", strconv.Itoa(update.UpdateID)).
				Warn("failed to check update id, handling anyway", zap.Error(err))
			first = true
		}
		if !first {
			metrics.DuplicateUpdatesTotal.Inc()
			logger.Info("duplicate update ignored", zap.Int("update_id", update.UpdateID))
			c.String(http.StatusOK, "Ok")
			return
		}

		if msg, ok := inboundMessage(update); ok {
			handler.Handle(ctx, msg)
		}
		c.String(http.StatusOK, "Ok")
	})
}

func inboundMessage(update tgbotapi.Update) (bot.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return bot.InboundMessage{}, false
	}

	inbound := bot.InboundMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	for _, p := range msg.Photo {
		inbound.Photo = append(inbound.Photo, bot.PhotoSize{
			FileID:       p.FileID,
			FileUniqueID: p.FileUniqueID,
			FileSize:     p.FileSize,
			Width:        p.Width,
			Height:       p.Height,
		})
	}
	return inbound, true
}
