package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

const (
	TypePaymentCreated          = "payment.created"
	TypePaymentSucceeded        = "payment.succeeded"
	TypePaymentCanceled         = "payment.canceled"
	TypePaymentExpired          = "payment.expired"
	TypePaymentLateConfirmation = "payment.late_confirmation"
)

type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	PaymentID  uint64          `json:"payment_id"`
	UserID     int64           `json:"user_id"`
	CourseID   uint64          `json:"course_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	Method     string          `json:"method"`
	Source     string          `json:"source,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewPaymentEvent(eventType string, payment *entity.Payment, source string, now time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		PaymentID:  payment.ID,
		UserID:     payment.UserID,
		CourseID:   payment.CourseID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Status:     payment.Status,
		Method:     payment.Method,
		Source:     source,
		OccurredAt: now,
	}
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// WithTimeout bounds every Publish call by timeout.
func WithTimeout(publisher Publisher, timeout time.Duration) Publisher {
	if timeout <= 0 {
		return publisher
	}
	return &timeoutPublisher{Publisher: publisher, timeout: timeout}
}

type timeoutPublisher struct {
	Publisher
	timeout time.Duration
}

func (p *timeoutPublisher) Publish(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Publisher.Publish(ctx, event)
}
