package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/provider"
	"github.com/vibast-solutions/ms-go-course-shop/app/repository"
)

// Presenter renders the payment UI in the buyer's chat and returns the id of
// the message it sent.
type Presenter interface {
	PresentInvoice(ctx context.Context, payment *entity.Payment, course *entity.Course, token string) (int, error)
	PresentPending(ctx context.Context, payment *entity.Payment, course *entity.Course) (int, error)
	PresentPaymentLink(ctx context.Context, payment *entity.Payment, course *entity.Course, messageID int, url string) error
}

// StartPurchase issues an invoice: pending row, chat UI, message id, gateway
// payment for redirect flows, then the expiry timer. A failure before the
// timer is armed abandons the payment.
func (s *PaymentService) StartPurchase(ctx context.Context, userID int64, courseID uint64, method string, presenter Presenter) (*entity.Payment, error) {
	if presenter == nil {
		return nil, ErrInvalidRequest
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	owned, err := s.entitlementRepo.HasAccess(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}

	payment, err := s.CreatePendingPayment(ctx, userID, courseID, course.Price, method)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithField("payment_id", payment.ID).WithField("method", method)

	var messageID int
	switch method {
	case entity.PaymentMethodTelegram:
		token := CorrelationToken{PaymentID: payment.ID, UserID: userID, CourseID: courseID}.String()
		messageID, err = presenter.PresentInvoice(ctx, payment, course, token)
	default:
		messageID, err = presenter.PresentPending(ctx, payment, course)
	}
	if err != nil {
		s.abandon(ctx, payment.ID, "presentation_failed")
		return nil, fmt.Errorf("%w: %v", ErrNotification, err)
	}

	if err := s.AttachInvoiceMessage(ctx, payment.ID, messageID); err != nil {
		logger.WithError(err).Error("Failed to attach invoice message")
		s.abandon(ctx, payment.ID, "attach_failed")
		return nil, err
	}
	id := messageID
	payment.InvoiceMessageID = &id

	if method == entity.PaymentMethodYooKassa {
		if err := s.issueGatewayPayment(ctx, payment, course, messageID, presenter); err != nil {
			logger.WithError(err).Error("Failed to issue gateway payment")
			s.abandon(ctx, payment.ID, "provider_failed")
			return nil, err
		}
	}

	s.ArmExpiry(payment.ID)
	return payment, nil
}

func (s *PaymentService) issueGatewayPayment(ctx context.Context, payment *entity.Payment, course *entity.Course, messageID int, presenter Presenter) error {
	providerClient, err := s.providerReg.Get(payment.Method)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return ErrProviderUnsupported
		}
		return err
	}

	out, err := providerClient.CreatePayment(ctx, &provider.CreateInput{
		PaymentID:   payment.ID,
		UserID:      payment.UserID,
		CourseID:    payment.CourseID,
		MessageID:   messageID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: course.Title,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if err := s.paymentRepo.AttachProviderPayment(ctx, payment.ID, out.ProviderPaymentID, s.now()); err != nil {
		if errors.Is(err, repository.ErrProviderPaymentConflict) {
			return fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	providerPaymentID := out.ProviderPaymentID
	payment.ProviderPaymentID = &providerPaymentID

	if err := presenter.PresentPaymentLink(ctx, payment, course, messageID, out.ConfirmationURL); err != nil {
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return nil
}

// abandon cancels a payment whose invoice never reached the buyer. No chat
// effects are sent.
func (s *PaymentService) abandon(ctx context.Context, paymentID uint64, reason string) {
	now := s.now()
	won, err := s.paymentRepo.Transition(ctx, paymentID, entity.PaymentStatusPending, entity.PaymentStatusCanceled, now)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Error("Failed to abandon payment")
		return
	}
	if !won {
		return
	}

	oldStatus := entity.PaymentStatusPending
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: paymentID,
		EventType: "payment_abandoned",
		Source:    reason,
		OldStatus: &oldStatus,
		NewStatus: entity.PaymentStatusCanceled,
		CreatedAt: now,
	})
}
