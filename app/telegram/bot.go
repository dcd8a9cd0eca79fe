package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vibast-solutions/ms-go-course-shop/config"
)

func NewBot(cfg config.TelegramConfig) (*bot.Bot, error) {
	opts := []bot.Option{
		bot.WithWorkers(workers(cfg.Workers)),
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
	}
	if cfg.Mode == config.BotModeWebhook && cfg.WebhookSecretToken != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecretToken))
	}
	return bot.New(cfg.Token, opts...)
}

// Register wires the shop handlers. Purchase entry points and commands are
// throttled per chat; payment updates from Telegram are not.
func Register(b *bot.Bot, h *Handler, throttled bot.Middleware) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.Start, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/catalog", bot.MatchTypeExact, h.Catalog, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, MenuCatalog, bot.MatchTypeExact, h.Catalog, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/courses", bot.MatchTypeExact, h.MyCourses, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, MenuMyCourses, bot.MatchTypeExact, h.MyCourses, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypeExact, h.History, throttled)
	b.RegisterHandler(bot.HandlerTypeMessageText, MenuHistory, bot.MatchTypeExact, h.History, throttled)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, CallbackViewPrefix, bot.MatchTypePrefix, h.CourseDetails, throttled)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, CallbackCatalog, bot.MatchTypeExact, h.BackToCatalog, throttled)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, CallbackBuyPrefix, bot.MatchTypePrefix, h.BuyCourse, throttled)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, CallbackPayPrefix, bot.MatchTypePrefix, h.PayCourse, throttled)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, CallbackCancelPrefix, bot.MatchTypePrefix, h.CancelPayment)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.PreCheckoutQuery != nil
	}, h.PreCheckout)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && update.Message.SuccessfulPayment != nil
	}, h.SuccessfulPayment)
}

func workers(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
