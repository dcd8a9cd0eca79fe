package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
)

type chatPresenter struct {
	messenger     Messenger
	chatID        int64
	providerToken string
}

func (p *chatPresenter) PresentInvoice(ctx context.Context, payment *entity.Payment, course *entity.Course, token string) (int, error) {
	if p.providerToken == "" {
		return 0, errors.New("telegram payment provider token is not configured")
	}

	description := course.ShortDescription
	if description == "" {
		description = course.Title
	}

	msg, err := p.messenger.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        p.chatID,
		Title:         course.Title,
		Description:   description,
		Payload:       token,
		ProviderToken: p.providerToken,
		Currency:      payment.Currency,
		Prices: []models.LabeledPrice{
			{Label: course.Title, Amount: int(service.MinorUnits(payment.Amount))},
		},
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: fmt.Sprintf("Pay %s", formatAmount(payment)), Pay: true}},
				{{Text: "Cancel", CallbackData: CallbackCancelPrefix + token}},
			},
		},
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (p *chatPresenter) PresentPending(ctx context.Context, payment *entity.Payment, course *entity.Course) (int, error) {
	msg, err := p.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: p.chatID,
		Text:   fmt.Sprintf("Preparing payment for %s (%s)...", course.Title, formatAmount(payment)),
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (p *chatPresenter) PresentPaymentLink(ctx context.Context, payment *entity.Payment, course *entity.Course, messageID int, url string) error {
	_, err := p.messenger.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    p.chatID,
		MessageID: messageID,
		Text:      fmt.Sprintf("%s\nAmount: %s\nThe link is valid for a limited time.", course.Title, formatAmount(payment)),
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Pay", URL: url}},
			},
		},
	})
	return err
}
