package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

// Messenger is the subset of the Bot API used by the shop. *bot.Bot
// satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendInvoice(ctx context.Context, params *bot.SendInvoiceParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	AnswerPreCheckoutQuery(ctx context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error)
}

var _ Messenger = (*bot.Bot)(nil)

const (
	CallbackBuyPrefix    = "course:buy:"
	CallbackPayPrefix    = "course:pay:"
	CallbackViewPrefix   = "course:view:"
	CallbackCatalog      = "catalog:list"
	CallbackCancelPrefix = "cancel:"
)

// Main menu buttons. Each is also reachable through a command.
const (
	MenuCatalog   = "Courses"
	MenuMyCourses = "My courses"
	MenuHistory   = "Purchase history"
)

func buyCallback(courseID uint64, method string) string {
	if method == methodYooKassa {
		return CallbackPayPrefix + formatID(courseID)
	}
	return CallbackBuyPrefix + formatID(courseID)
}

func retryKeyboard(courseID uint64, method string) models.InlineKeyboardMarkup {
	return models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Try again", CallbackData: buyCallback(courseID, method)}},
		},
	}
}

func mainMenuKeyboard() models.ReplyKeyboardMarkup {
	return models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: MenuCatalog}},
			{{Text: MenuMyCourses}, {Text: MenuHistory}},
		},
		ResizeKeyboard: true,
	}
}

func catalogKeyboard(courses []*entity.Course, currency string) models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(courses))
	for _, course := range courses {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s, %s %s", course.Title, course.Price.StringFixed(2), currency),
			CallbackData: CallbackViewPrefix + formatID(course.ID),
		}})
	}
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func courseDetailsKeyboard(courseID uint64) models.InlineKeyboardMarkup {
	return models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Buy in Telegram", CallbackData: buyCallback(courseID, methodTelegram)}},
			{{Text: "Pay by card", CallbackData: buyCallback(courseID, methodYooKassa)}},
			{{Text: "Back to courses", CallbackData: CallbackCatalog}},
		},
	}
}
