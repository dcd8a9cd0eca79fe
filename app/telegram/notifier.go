package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
)

// Notifier delivers payment outcomes to buyers and operators. Buyers are
// addressed by user id, which equals the private chat id.
type Notifier struct {
	messenger Messenger
	adminIDs  []int64
	logger    logrus.FieldLogger
}

func NewNotifier(messenger Messenger, adminIDs []int64) *Notifier {
	return &Notifier{
		messenger: messenger,
		adminIDs:  adminIDs,
		logger:    factory.NewModuleLogger("telegram-notifier"),
	}
}

func (n *Notifier) PaymentSucceeded(ctx context.Context, payment *entity.Payment, course *entity.Course) error {
	text := fmt.Sprintf("Payment received. %s is now available to you, find the materials under %s.", courseTitle(course, payment.CourseID), MenuMyCourses)

	if payment.Method == methodYooKassa && payment.InvoiceMessageID != nil {
		_, err := n.messenger.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    payment.UserID,
			MessageID: *payment.InvoiceMessageID,
			Text:      text,
		})
		if err == nil {
			return nil
		}
		n.logger.WithError(err).WithField("payment_id", payment.ID).Debug("Edit failed, sending a new message")
	}

	_, err := n.messenger.SendMessage(ctx, &bot.SendMessageParams{ChatID: payment.UserID, Text: text})
	return err
}

// PaymentCanceled replaces the invoice UI with a retry affordance. Telegram
// invoices cannot be edited, so they are deleted and a new message is sent.
func (n *Notifier) PaymentCanceled(ctx context.Context, payment *entity.Payment, course *entity.Course) error {
	text := fmt.Sprintf("Payment for %s was canceled.", courseTitle(course, payment.CourseID))

	if payment.Method == methodYooKassa && payment.InvoiceMessageID != nil {
		_, err := n.messenger.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      payment.UserID,
			MessageID:   *payment.InvoiceMessageID,
			Text:        text,
			ReplyMarkup: retryKeyboard(payment.CourseID, payment.Method),
		})
		return err
	}

	deleteErr := n.deleteInvoice(ctx, payment)
	_, err := n.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      payment.UserID,
		Text:        text,
		ReplyMarkup: retryKeyboard(payment.CourseID, payment.Method),
	})
	return errors.Join(deleteErr, err)
}

func (n *Notifier) PaymentExpired(ctx context.Context, payment *entity.Payment, course *entity.Course) error {
	deleteErr := n.deleteInvoice(ctx, payment)
	_, err := n.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      payment.UserID,
		Text:        fmt.Sprintf("The payment window for %s has closed.", courseTitle(course, payment.CourseID)),
		ReplyMarkup: retryKeyboard(payment.CourseID, payment.Method),
	})
	return errors.Join(deleteErr, err)
}

func (n *Notifier) OperatorPurchase(ctx context.Context, payment *entity.Payment, course *entity.Course) error {
	return n.notifyOperators(ctx, fmt.Sprintf(
		"New purchase: %s by user %d, %s via %s (payment #%d)",
		courseTitle(course, payment.CourseID), payment.UserID, formatAmount(payment), payment.Method, payment.ID,
	))
}

func (n *Notifier) OperatorLateConfirmation(ctx context.Context, payment *entity.Payment, source string) error {
	return n.notifyOperators(ctx, fmt.Sprintf(
		"Late confirmation: payment #%d (user %d, course %d, %s) was confirmed by %s after it had been canceled. Review and grant access manually if the charge is real.",
		payment.ID, payment.UserID, payment.CourseID, formatAmount(payment), source,
	))
}

func (n *Notifier) deleteInvoice(ctx context.Context, payment *entity.Payment) error {
	if payment.InvoiceMessageID == nil {
		return nil
	}
	_, err := n.messenger.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    payment.UserID,
		MessageID: *payment.InvoiceMessageID,
	})
	return err
}

func (n *Notifier) notifyOperators(ctx context.Context, text string) error {
	var errs []error
	for _, adminID := range n.adminIDs {
		if _, err := n.messenger.SendMessage(ctx, &bot.SendMessageParams{ChatID: adminID, Text: text}); err != nil {
			n.logger.WithError(err).WithField("admin_id", adminID).Warn("Failed to notify operator")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
