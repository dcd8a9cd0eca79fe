package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
)

type paymentFlow interface {
	StartPurchase(ctx context.Context, userID int64, courseID uint64, method string, presenter service.Presenter) (*entity.Payment, error)
	HandleConfirmationToken(ctx context.Context, token string, payerID int64) (bool, error)
	HandleCancellationToken(ctx context.Context, token string, requesterID int64) (bool, error)
	ValidatePreCheckout(ctx context.Context, token string, payerID int64, totalAmount int, currency string) error
	PurchaseHistory(ctx context.Context, userID int64) ([]*entity.PurchaseRecord, error)
}

type Handler struct {
	payments      paymentFlow
	catalog       catalogFlow
	messenger     Messenger
	providerToken string
	logger        logrus.FieldLogger
}

func NewHandler(payments paymentFlow, catalog catalogFlow, messenger Messenger, providerToken string) *Handler {
	return &Handler{
		payments:      payments,
		catalog:       catalog,
		messenger:     messenger,
		providerToken: providerToken,
		logger:        factory.NewModuleLogger("telegram-handler"),
	}
}

// Start registers the user and shows the main menu. A failed registration
// does not block the menu.
func (h *Handler) Start(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := "there"
	if from := update.Message.From; from != nil {
		fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
		if err := h.catalog.RegisterUser(ctx, from.ID, from.Username, fullName); err != nil {
			h.logger.WithError(err).WithField("user_id", from.ID).Warn("User registration failed")
		}
		if from.FirstName != "" {
			name = from.FirstName
		}
	}

	if _, err := h.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        "Hi, " + name + "! Welcome to the course shop. Open " + MenuCatalog + " to pick a course.",
		ReplyMarkup: mainMenuKeyboard(),
	}); err != nil {
		h.logger.WithError(err).WithField("chat_id", update.Message.Chat.ID).Warn("Failed to send welcome message")
	}
}

func (h *Handler) History(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	items, err := h.payments.PurchaseHistory(ctx, update.Message.From.ID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", update.Message.From.ID).Error("Failed to load purchase history")
		h.reply(ctx, update.Message.Chat.ID, "Could not load your purchases, try again later.")
		return
	}
	h.reply(ctx, update.Message.Chat.ID, formatHistory(items))
}

// BuyCourse issues a Telegram native invoice.
func (h *Handler) BuyCourse(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h.startPurchase(ctx, update, CallbackBuyPrefix, entity.PaymentMethodTelegram)
}

// PayCourse issues a YooKassa hosted payment link.
func (h *Handler) PayCourse(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h.startPurchase(ctx, update, CallbackPayPrefix, entity.PaymentMethodYooKassa)
}

func (h *Handler) startPurchase(ctx context.Context, update *models.Update, prefix, method string) {
	query := update.CallbackQuery
	if query == nil {
		return
	}
	h.answerCallback(ctx, query.ID, "")

	courseID, err := strconv.ParseUint(strings.TrimPrefix(query.Data, prefix), 10, 64)
	if err != nil || courseID == 0 {
		h.logger.WithField("data", query.Data).Warn("Invalid purchase callback")
		return
	}

	chatID := query.From.ID
	if query.Message.Message != nil {
		chatID = query.Message.Message.Chat.ID
	}

	presenter := &chatPresenter{messenger: h.messenger, chatID: chatID, providerToken: h.providerToken}
	payment, err := h.payments.StartPurchase(ctx, query.From.ID, courseID, method, presenter)
	if err != nil {
		logger := h.logger.WithError(err).WithField("user_id", query.From.ID).WithField("course_id", courseID)
		switch {
		case errors.Is(err, service.ErrAlreadyPurchased):
			h.reply(ctx, chatID, "You already own this course.")
		case errors.Is(err, service.ErrCourseNotFound):
			h.reply(ctx, chatID, "This course is no longer available.")
		default:
			logger.Error("Failed to start purchase")
			h.reply(ctx, chatID, "Could not create the payment, please try again.")
		}
		return
	}

	h.logger.WithField("payment_id", payment.ID).WithField("method", method).Info("Invoice issued")
}

func (h *Handler) CancelPayment(ctx context.Context, _ *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	token := strings.TrimPrefix(query.Data, CallbackCancelPrefix)
	won, err := h.payments.HandleCancellationToken(ctx, token, query.From.ID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", query.From.ID).Warn("Cancellation rejected")
		h.answerCallback(ctx, query.ID, "This payment can no longer be canceled.")
		return
	}
	if !won {
		h.answerCallback(ctx, query.ID, "This payment is already closed.")
		return
	}
	h.answerCallback(ctx, query.ID, "Payment canceled.")
}

// PreCheckout answers Telegram before the buyer is charged. Every query is
// answered; unknown or resolved payments are refused.
func (h *Handler) PreCheckout(ctx context.Context, _ *bot.Bot, update *models.Update) {
	query := update.PreCheckoutQuery
	if query == nil {
		return
	}

	var payerID int64
	if query.From != nil {
		payerID = query.From.ID
	}

	params := &bot.AnswerPreCheckoutQueryParams{PreCheckoutQueryID: query.ID, OK: true}
	if err := h.payments.ValidatePreCheckout(ctx, query.InvoicePayload, payerID, query.TotalAmount, query.Currency); err != nil {
		h.logger.WithError(err).WithField("user_id", payerID).Warn("Pre-checkout refused")
		params.OK = false
		params.ErrorMessage = "This invoice is no longer valid. Please request a new one."
	}

	if _, err := h.messenger.AnswerPreCheckoutQuery(ctx, params); err != nil {
		h.logger.WithError(err).Error("Failed to answer pre-checkout query")
	}
}

func (h *Handler) SuccessfulPayment(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.SuccessfulPayment == nil {
		return
	}

	var payerID int64
	if update.Message.From != nil {
		payerID = update.Message.From.ID
	}
	payment := update.Message.SuccessfulPayment

	won, err := h.payments.HandleConfirmationToken(ctx, payment.InvoicePayload, payerID)
	logger := h.logger.WithField("user_id", payerID).WithField("charge_id", payment.TelegramPaymentChargeID)
	if err != nil {
		logger.WithError(err).Error("Failed to confirm telegram payment")
		return
	}
	if !won {
		logger.Info("Telegram payment confirmation was not applied")
	}
}

func (h *Handler) answerCallback(ctx context.Context, id, text string) {
	if _, err := h.messenger.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: id, Text: text}); err != nil {
		h.logger.WithError(err).Debug("Failed to answer callback query")
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.messenger.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message")
	}
}
