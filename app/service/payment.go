package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/events"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
	"github.com/vibast-solutions/ms-go-course-shop/app/provider"
	"github.com/vibast-solutions/ms-go-course-shop/app/repository"
	"github.com/vibast-solutions/ms-go-course-shop/app/scheduler"
	"github.com/vibast-solutions/ms-go-course-shop/config"
)

const (
	SourceTelegram  = "telegram"
	SourceWebhook   = "webhook"
	SourceUser      = "user"
	SourceOperator  = "operator"
	SourceExpiry    = "expiry"
	SourceReconcile = "reconcile"

	EventLateConfirmation = "late_confirmation"

	defaultBatchSize    = int32(100)
	defaultHistoryLimit = int32(20)
	defaultInvoiceTTL   = 600 * time.Second
	effectTimeout       = 30 * time.Second
)

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	AttachInvoiceMessage(ctx context.Context, id uint64, messageID int, now time.Time) error
	AttachProviderPayment(ctx context.Context, id uint64, providerPaymentID string, now time.Time) error
	Transition(ctx context.Context, id uint64, from, to string, now time.Time) (bool, error)
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
	ListPurchasesByUser(ctx context.Context, userID int64, limit int32) ([]*entity.PurchaseRecord, error)
}

type entitlementRepository interface {
	Grant(ctx context.Context, item *entity.Entitlement) (bool, error)
	HasAccess(ctx context.Context, userID int64, courseID uint64) (bool, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
	ListByPayment(ctx context.Context, paymentID uint64, limit int32) ([]*entity.PaymentEvent, error)
	ExistsByType(ctx context.Context, paymentID uint64, eventType string) (bool, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Course, error)
}

// Notifier delivers the chat side effects of a resolved payment.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, payment *entity.Payment, course *entity.Course) error
	PaymentCanceled(ctx context.Context, payment *entity.Payment, course *entity.Course) error
	PaymentExpired(ctx context.Context, payment *entity.Payment, course *entity.Course) error
	OperatorPurchase(ctx context.Context, payment *entity.Payment, course *entity.Course) error
	OperatorLateConfirmation(ctx context.Context, payment *entity.Payment, source string) error
}

type PaymentService struct {
	paymentRepo     paymentRepository
	entitlementRepo entitlementRepository
	eventRepo       paymentEventRepository
	courseRepo      courseRepository
	providerReg     *provider.Registry
	expiry          scheduler.Scheduler
	notifier        Notifier
	publisher       events.Publisher
	paymentsCfg     config.PaymentsConfig
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewPaymentService(
	paymentRepo paymentRepository,
	entitlementRepo entitlementRepository,
	eventRepo paymentEventRepository,
	courseRepo courseRepository,
	providerReg *provider.Registry,
	expiry scheduler.Scheduler,
	notifier Notifier,
	publisher events.Publisher,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if providerReg == nil {
		providerReg = provider.NewRegistry()
	}

	return &PaymentService{
		paymentRepo:     paymentRepo,
		entitlementRepo: entitlementRepo,
		eventRepo:       eventRepo,
		courseRepo:      courseRepo,
		providerReg:     providerReg,
		expiry:          expiry,
		notifier:        notifier,
		publisher:       publisher,
		paymentsCfg:     paymentsCfg,
		logger:          factory.NewModuleLogger("payment-service"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *PaymentService) CreatePendingPayment(ctx context.Context, userID int64, courseID uint64, amount decimal.Decimal, method string) (*entity.Payment, error) {
	if userID == 0 || courseID == 0 || !amount.IsPositive() {
		return nil, ErrInvalidRequest
	}
	if method != entity.PaymentMethodTelegram && method != entity.PaymentMethodYooKassa {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, method)
	}

	now := s.now()
	payment := &entity.Payment{
		UserID:    userID,
		CourseID:  courseID,
		Amount:    amount,
		Currency:  s.currency(),
		Status:    entity.PaymentStatusPending,
		Method:    method,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "payment_created",
		Source:    method,
		NewStatus: payment.Status,
		CreatedAt: now,
	})
	s.publish(ctx, events.TypePaymentCreated, payment, method)

	return payment, nil
}

func (s *PaymentService) AttachInvoiceMessage(ctx context.Context, paymentID uint64, messageID int) error {
	if paymentID == 0 || messageID == 0 {
		return ErrInvalidRequest
	}
	if err := s.paymentRepo.AttachInvoiceMessage(ctx, paymentID, messageID, s.now()); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		if errors.Is(err, repository.ErrInvoiceMessageAlreadySet) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uint64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// Confirm resolves a pending payment as succeeded. Only the caller that wins
// the conditional update runs the downstream effects; it reports true.
func (s *PaymentService) Confirm(ctx context.Context, paymentID uint64, source string) (bool, error) {
	logger := s.logger.WithField("payment_id", paymentID).WithField("source", source)

	payment, err := s.loadForTransition(ctx, paymentID, logger)
	if err != nil {
		return false, err
	}

	now := s.now()
	won, err := s.paymentRepo.Transition(ctx, paymentID, entity.PaymentStatusPending, entity.PaymentStatusSucceeded, now)
	if err != nil {
		logger.WithError(err).Error("Failed to confirm payment")
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !won {
		return false, s.confirmationLost(ctx, paymentID, source, logger)
	}

	if s.expiry != nil {
		s.expiry.Cancel(paymentID)
	}
	markResolved(payment, entity.PaymentStatusSucceeded, now)

	oldStatus := entity.PaymentStatusPending
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: paymentID,
		EventType: "payment_succeeded",
		Source:    source,
		OldStatus: &oldStatus,
		NewStatus: entity.PaymentStatusSucceeded,
		CreatedAt: now,
	})

	if _, err := s.GrantEntitlement(ctx, payment.UserID, payment.CourseID, payment.ID); err != nil {
		logger.WithError(err).Error("Failed to grant entitlement for confirmed payment")
	}

	course := s.findCourse(ctx, payment.CourseID)
	if s.notifier != nil {
		if err := s.notifier.PaymentSucceeded(ctx, payment, course); err != nil {
			logger.WithError(err).Warn("Failed to notify buyer about successful payment")
		}
		if err := s.notifier.OperatorPurchase(ctx, payment, course); err != nil {
			logger.WithError(err).Warn("Failed to notify operators about purchase")
		}
	}
	s.publish(ctx, events.TypePaymentSucceeded, payment, source)

	logger.WithField("user_id", payment.UserID).WithField("course_id", payment.CourseID).Info("Payment confirmed")
	return true, nil
}

func (s *PaymentService) confirmationLost(ctx context.Context, paymentID uint64, source string, logger logrus.FieldLogger) error {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil || payment == nil {
		logger.WithError(err).Warn("Failed to load payment after lost confirmation")
		return nil
	}

	if payment.Status != entity.PaymentStatusCanceled {
		logger.Info("Duplicate confirmation ignored")
		return nil
	}

	logger.WithField("user_id", payment.UserID).WithField("course_id", payment.CourseID).
		Warn("late_confirmation: payment confirmed after it was canceled")

	payload, _ := json.Marshal(map[string]string{"source": source})
	payloadJSON := string(payload)
	status := payment.Status
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:   paymentID,
		EventType:   EventLateConfirmation,
		Source:      source,
		OldStatus:   &status,
		NewStatus:   status,
		PayloadJSON: &payloadJSON,
		CreatedAt:   s.now(),
	})
	s.publish(ctx, events.TypePaymentLateConfirmation, payment, source)
	if s.notifier != nil {
		if err := s.notifier.OperatorLateConfirmation(ctx, payment, source); err != nil {
			logger.WithError(err).Warn("Failed to alert operators about late confirmation")
		}
	}
	return nil
}

// Cancel resolves a pending payment as canceled and offers the buyer a retry.
func (s *PaymentService) Cancel(ctx context.Context, paymentID uint64, source string) (bool, error) {
	payment, won, err := s.resolveCanceled(ctx, paymentID, source, "payment_canceled")
	if err != nil || !won {
		return false, err
	}

	course := s.findCourse(ctx, payment.CourseID)
	if s.notifier != nil {
		if err := s.notifier.PaymentCanceled(ctx, payment, course); err != nil {
			s.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to update invoice after cancellation")
		}
	}
	s.publish(ctx, events.TypePaymentCanceled, payment, source)
	return true, nil
}

// Expire is the timer path: the invoice is withdrawn and the buyer told the
// payment window has closed.
func (s *PaymentService) Expire(ctx context.Context, paymentID uint64) (bool, error) {
	payment, won, err := s.resolveCanceled(ctx, paymentID, SourceExpiry, "payment_expired")
	if err != nil || !won {
		return false, err
	}

	course := s.findCourse(ctx, payment.CourseID)
	if s.notifier != nil {
		if err := s.notifier.PaymentExpired(ctx, payment, course); err != nil {
			s.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to withdraw expired invoice")
		}
	}
	s.publish(ctx, events.TypePaymentExpired, payment, SourceExpiry)
	return true, nil
}

func (s *PaymentService) resolveCanceled(ctx context.Context, paymentID uint64, source, eventType string) (*entity.Payment, bool, error) {
	logger := s.logger.WithField("payment_id", paymentID).WithField("source", source)

	payment, err := s.loadForTransition(ctx, paymentID, logger)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	won, err := s.paymentRepo.Transition(ctx, paymentID, entity.PaymentStatusPending, entity.PaymentStatusCanceled, now)
	if err != nil {
		logger.WithError(err).Error("Failed to cancel payment")
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !won {
		logger.Debug("Cancellation discarded, payment already resolved")
		return nil, false, nil
	}

	if source != SourceExpiry && s.expiry != nil {
		s.expiry.Cancel(paymentID)
	}
	markResolved(payment, entity.PaymentStatusCanceled, now)

	oldStatus := entity.PaymentStatusPending
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: paymentID,
		EventType: eventType,
		Source:    source,
		OldStatus: &oldStatus,
		NewStatus: entity.PaymentStatusCanceled,
		CreatedAt: now,
	})

	logger.Info("Payment canceled")
	return payment, true, nil
}

// loadForTransition reads the row ahead of the conditional update. user_id and
// course_id never change after creation.
func (s *PaymentService) loadForTransition(ctx context.Context, paymentID uint64, logger logrus.FieldLogger) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		logger.WithError(err).Error("Failed to load payment")
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if payment == nil {
		logger.Warn("Transition requested for unknown payment")
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func markResolved(payment *entity.Payment, status string, now time.Time) {
	resolvedAt := now
	payment.Status = status
	payment.UpdatedAt = now
	payment.ResolvedAt = &resolvedAt
}

// GrantEntitlement gives the user access to the course. It reports true only
// when a new entitlement was written.
func (s *PaymentService) GrantEntitlement(ctx context.Context, userID int64, courseID uint64, paymentID uint64) (bool, error) {
	if userID == 0 || courseID == 0 {
		return false, ErrInvalidRequest
	}

	item := &entity.Entitlement{
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: s.now(),
	}
	if paymentID > 0 {
		id := paymentID
		item.PaymentID = &id
	}

	granted, err := s.entitlementRepo.Grant(ctx, item)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return granted, nil
}

// SettleLateConfirmation grants the course bought by a payment that was
// confirmed after it had been canceled. Any other payment is refused with
// ErrValidation.
func (s *PaymentService) SettleLateConfirmation(ctx context.Context, paymentID uint64) (bool, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if payment.Status != entity.PaymentStatusCanceled {
		return false, fmt.Errorf("%w: payment is %s, not canceled", ErrValidation, payment.Status)
	}

	late, err := s.eventRepo.ExistsByType(ctx, payment.ID, EventLateConfirmation)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !late {
		return false, fmt.Errorf("%w: payment has no late confirmation", ErrValidation)
	}

	granted, err := s.GrantEntitlement(ctx, payment.UserID, payment.CourseID, payment.ID)
	if err != nil {
		return false, err
	}

	status := payment.Status
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "entitlement_granted_manually",
		Source:    SourceOperator,
		OldStatus: &status,
		NewStatus: status,
		CreatedAt: s.now(),
	})
	return granted, nil
}

// ArmExpiry schedules the expiry of a pending payment. It must be called
// only after the invoice UI is attached.
func (s *PaymentService) ArmExpiry(paymentID uint64) {
	if s.expiry == nil {
		return
	}
	s.expiry.Schedule(paymentID, s.invoiceTTL(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		defer cancel()

		if _, err := s.Expire(ctx, paymentID); err != nil {
			s.logger.WithError(err).WithField("payment_id", paymentID).Warn("Expiry timer failed")
		}
	})
}

// PaymentAudit returns the recorded transitions and anomalies of a payment.
func (s *PaymentService) PaymentAudit(ctx context.Context, paymentID uint64) ([]*entity.PaymentEvent, error) {
	if _, err := s.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}

	items, err := s.eventRepo.ListByPayment(ctx, paymentID, s.batchSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return items, nil
}

func (s *PaymentService) PurchaseHistory(ctx context.Context, userID int64) ([]*entity.PurchaseRecord, error) {
	limit := s.paymentsCfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	items, err := s.paymentRepo.ListPurchasesByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return items, nil
}

func (s *PaymentService) findCourse(ctx context.Context, courseID uint64) *entity.Course {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		s.logger.WithError(err).WithField("course_id", courseID).Warn("Failed to load course")
		return nil
	}
	return course
}

func (s *PaymentService) publish(ctx context.Context, eventType string, payment *entity.Payment, source string) {
	if err := s.publisher.Publish(ctx, events.NewPaymentEvent(eventType, payment, source, s.now())); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).WithField("event", eventType).Warn("Failed to publish payment event")
	}
}

func (s *PaymentService) currency() string {
	if s.paymentsCfg.Currency != "" {
		return s.paymentsCfg.Currency
	}
	return "RUB"
}

func (s *PaymentService) invoiceTTL() time.Duration {
	if s.paymentsCfg.InvoiceTTL > 0 {
		return s.paymentsCfg.InvoiceTTL
	}
	return defaultInvoiceTTL
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}
