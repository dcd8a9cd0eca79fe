package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/provider"
	"github.com/vibast-solutions/ms-go-course-shop/app/repository"
)

// HandleConfirmationToken confirms the payment named by a Telegram invoice
// payload once the payer and the stored row agree with it.
func (s *PaymentService) HandleConfirmationToken(ctx context.Context, token string, payerID int64) (bool, error) {
	payment, err := s.resolveToken(ctx, token, payerID)
	if err != nil {
		return false, err
	}
	return s.Confirm(ctx, payment.ID, SourceTelegram)
}

func (s *PaymentService) HandleCancellationToken(ctx context.Context, token string, requesterID int64) (bool, error) {
	payment, err := s.resolveToken(ctx, token, requesterID)
	if err != nil {
		return false, err
	}
	return s.Cancel(ctx, payment.ID, SourceUser)
}

// ValidatePreCheckout is asked before Telegram charges the buyer. totalAmount
// is in minor currency units.
func (s *PaymentService) ValidatePreCheckout(ctx context.Context, token string, payerID int64, totalAmount int, currency string) error {
	payment, err := s.resolveToken(ctx, token, payerID)
	if err != nil {
		return err
	}
	if payment.Status != entity.PaymentStatusPending {
		return ErrAlreadyResolved
	}
	if !strings.EqualFold(payment.Currency, currency) {
		return fmt.Errorf("%w: currency mismatch", ErrValidation)
	}
	if MinorUnits(payment.Amount) != int64(totalAmount) {
		return fmt.Errorf("%w: amount mismatch", ErrValidation)
	}
	return nil
}

func (s *PaymentService) resolveToken(ctx context.Context, token string, actorID int64) (*entity.Payment, error) {
	parsed, err := ParseCorrelationToken(token)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected correlation token")
		return nil, err
	}

	payment, err := s.GetPayment(ctx, parsed.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != parsed.UserID || payment.CourseID != parsed.CourseID {
		s.logger.WithField("payment_id", payment.ID).Warn("Correlation token does not match stored payment")
		return nil, fmt.Errorf("%w: token does not match payment", ErrValidation)
	}
	if actorID != 0 && actorID != payment.UserID {
		return nil, fmt.Errorf("%w: token used by another user", ErrValidation)
	}
	return payment, nil
}

// HandleProviderNotification applies a gateway webhook. Errors are for
// logging only; the transport acknowledges every delivery.
func (s *PaymentService) HandleProviderNotification(ctx context.Context, providerCode string, body []byte) error {
	providerClient, err := s.providerReg.Get(providerCode)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return ErrProviderUnsupported
		}
		return err
	}

	notification, err := providerClient.ParseNotification(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ref, err := parseNotificationMetadata(notification.Metadata)
	if err != nil {
		return err
	}

	payment, err := s.GetPayment(ctx, ref.paymentID)
	if err != nil {
		return err
	}
	if payment.UserID != ref.userID || payment.CourseID != ref.courseID {
		return fmt.Errorf("%w: metadata does not match payment", ErrValidation)
	}
	if payment.ProviderPaymentID != nil && *payment.ProviderPaymentID != notification.ProviderPaymentID {
		return fmt.Errorf("%w: provider payment id mismatch", ErrValidation)
	}

	if payment.InvoiceMessageID == nil && ref.messageID > 0 {
		err := s.paymentRepo.AttachInvoiceMessage(ctx, payment.ID, ref.messageID, s.now())
		if err != nil && !errors.Is(err, repository.ErrInvoiceMessageAlreadySet) {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Failed to attach message id from notification")
		}
	}

	switch notification.Status {
	case entity.PaymentStatusSucceeded:
		_, err = s.Confirm(ctx, payment.ID, SourceWebhook)
	case entity.PaymentStatusCanceled:
		_, err = s.Cancel(ctx, payment.ID, SourceWebhook)
	default:
		s.logger.WithField("payment_id", payment.ID).WithField("event", notification.Event).Debug("Ignoring non-terminal notification")
	}
	return err
}

type notificationRef struct {
	paymentID uint64
	userID    int64
	courseID  uint64
	messageID int
}

func parseNotificationMetadata(metadata map[string]string) (*notificationRef, error) {
	field := func(key string) (string, error) {
		value := strings.TrimSpace(metadata[key])
		if value == "" {
			return "", fmt.Errorf("%w: metadata %s is missing", ErrValidation, key)
		}
		return value, nil
	}

	raw, err := field(provider.MetadataPaymentID)
	if err != nil {
		return nil, err
	}
	paymentID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || paymentID == 0 {
		return nil, fmt.Errorf("%w: metadata payment_id is not an integer", ErrValidation)
	}

	if raw, err = field(provider.MetadataUserID); err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata user_id is not an integer", ErrValidation)
	}

	if raw, err = field(provider.MetadataCourseID); err != nil {
		return nil, err
	}
	courseID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata course_id is not an integer", ErrValidation)
	}

	if raw, err = field(provider.MetadataMessageID); err != nil {
		return nil, err
	}
	messageID, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata message_id is not an integer", ErrValidation)
	}

	return &notificationRef{paymentID: paymentID, userID: userID, courseID: courseID, messageID: messageID}, nil
}

// MinorUnits converts an amount to kopecks/cents as Telegram invoices expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
