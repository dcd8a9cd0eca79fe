package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	MetadataPaymentID = "payment_id"
	MetadataUserID    = "user_id"
	MetadataCourseID  = "course_id"
	MetadataMessageID = "message_id"
)

type CreateInput struct {
	PaymentID   uint64
	UserID      int64
	CourseID    uint64
	MessageID   int
	Amount      decimal.Decimal
	Currency    string
	Description string
}

type CreateOutput struct {
	ProviderPaymentID string
	ConfirmationURL   string
	Status            string
}

// Notification is a parsed gateway webhook. Status is already mapped to
// entity payment statuses; Metadata carries the raw correlation fields.
type Notification struct {
	Event             string
	ProviderPaymentID string
	Status            string
	Metadata          map[string]string
}

type Provider interface {
	Code() string
	CreatePayment(ctx context.Context, input *CreateInput) (*CreateOutput, error)
	ParseNotification(ctx context.Context, payload []byte) (*Notification, error)
	GetPaymentStatus(ctx context.Context, providerPaymentID string) (string, error)
}
