package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/throttle"
)

// ThrottleMiddleware drops updates from a chat that acted within the
// throttle window. A throttler error lets the update through.
func ThrottleMiddleware(throttler throttle.Throttler, logger logrus.FieldLogger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chatID, ok := updateChatID(update)
			if !ok {
				next(ctx, b, update)
				return
			}

			allowed, err := throttler.Allow(ctx, chatID)
			if err != nil {
				logger.WithError(err).Warn("Throttle check failed")
				next(ctx, b, update)
				return
			}
			if !allowed {
				logger.WithField("chat_id", chatID).Debug("Update throttled")
				return
			}
			next(ctx, b, update)
		}
	}
}

func updateChatID(update *models.Update) (int64, bool) {
	switch {
	case update == nil:
		return 0, false
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message.Message != nil {
			return update.CallbackQuery.Message.Message.Chat.ID, true
		}
		return update.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}
