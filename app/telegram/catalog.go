package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
)

type catalogFlow interface {
	ListCourses(ctx context.Context) ([]*entity.Course, error)
	Course(ctx context.Context, courseID uint64) (*entity.Course, error)
	UserCourses(ctx context.Context, userID int64) ([]*entity.OwnedCourse, error)
	RegisterUser(ctx context.Context, userID int64, username, fullName string) error
	Currency() string
}

const catalogHeader = "Available courses:"

func (h *Handler) Catalog(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	courses, err := h.catalog.ListCourses(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		h.reply(ctx, chatID, "Could not load the catalog, try again later.")
		return
	}
	if len(courses) == 0 {
		h.reply(ctx, chatID, "No courses are available right now.")
		return
	}

	if _, err := h.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        catalogHeader,
		ReplyMarkup: catalogKeyboard(courses, h.catalog.Currency()),
	}); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send catalog")
	}
}

// CourseDetails replaces the catalog message with the course card and its
// purchase buttons.
func (h *Handler) CourseDetails(ctx context.Context, _ *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	courseID, err := strconv.ParseUint(strings.TrimPrefix(query.Data, CallbackViewPrefix), 10, 64)
	if err != nil || courseID == 0 {
		h.logger.WithField("data", query.Data).Warn("Invalid course callback")
		h.answerCallback(ctx, query.ID, "")
		return
	}

	course, err := h.catalog.Course(ctx, courseID)
	if err != nil {
		if !errors.Is(err, service.ErrCourseNotFound) {
			h.logger.WithError(err).WithField("course_id", courseID).Error("Failed to load course")
		}
		h.answerCallback(ctx, query.ID, "Course not found.")
		return
	}
	h.answerCallback(ctx, query.ID, "")

	h.showInPlace(ctx, query, formatCourseDetails(course, h.catalog.Currency()), courseDetailsKeyboard(course.ID))
}

func (h *Handler) BackToCatalog(ctx context.Context, _ *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}
	h.answerCallback(ctx, query.ID, "")

	courses, err := h.catalog.ListCourses(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		return
	}
	h.showInPlace(ctx, query, catalogHeader, catalogKeyboard(courses, h.catalog.Currency()))
}

// MyCourses lists owned courses with their materials links.
func (h *Handler) MyCourses(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	items, err := h.catalog.UserCourses(ctx, update.Message.From.ID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", update.Message.From.ID).Error("Failed to load owned courses")
		h.reply(ctx, update.Message.Chat.ID, "Could not load your courses, try again later.")
		return
	}
	h.reply(ctx, update.Message.Chat.ID, formatOwnedCourses(items))
}

// showInPlace edits the message the callback came from, or sends a new one
// when that message is no longer accessible.
func (h *Handler) showInPlace(ctx context.Context, query *models.CallbackQuery, text string, markup models.InlineKeyboardMarkup) {
	if msg := query.Message.Message; msg != nil {
		_, err := h.messenger.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      msg.Chat.ID,
			MessageID:   msg.ID,
			Text:        text,
			ReplyMarkup: markup,
		})
		if err == nil {
			return
		}
		h.logger.WithError(err).WithField("message_id", msg.ID).Debug("Edit failed, sending a new message")
	}

	if _, err := h.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      query.From.ID,
		Text:        text,
		ReplyMarkup: markup,
	}); err != nil {
		h.logger.WithError(err).WithField("chat_id", query.From.ID).Warn("Failed to send message")
	}
}
