package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
)

const (
	PaymentMethodTelegram = "telegram"
	PaymentMethodYooKassa = "yookassa"
)

type Payment struct {
	ID uint64

	UserID   int64
	CourseID uint64

	Amount   decimal.Decimal
	Currency string

	Status string
	Method string

	InvoiceMessageID  *int
	ProviderPaymentID *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Terminal reports whether the payment can no longer transition.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusCanceled
}
