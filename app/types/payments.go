package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxNotificationBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type Payment struct {
	ID                uint64 `json:"id"`
	UserID            int64  `json:"user_id"`
	CourseID          uint64 `json:"course_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Method            string `json:"method"`
	InvoiceMessageID  int    `json:"invoice_message_id,omitempty"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	ResolvedAt        string `json:"resolved_at,omitempty"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type GetPaymentRequest struct {
	ID uint64
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{ID: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

// ProviderNotificationRequest is a raw gateway delivery. The body is passed
// through untouched so the provider can parse it.
type ProviderNotificationRequest struct {
	Provider string
	Body     []byte
}

func NewProviderNotificationRequestFromContext(ctx echo.Context) (*ProviderNotificationRequest, error) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxNotificationBytes))
	if err != nil {
		return nil, err
	}

	return &ProviderNotificationRequest{
		Provider: strings.TrimSpace(strings.ToLower(ctx.Param("provider"))),
		Body:     body,
	}, nil
}

func (r *ProviderNotificationRequest) Validate() error {
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if len(r.Body) == 0 {
		return errors.New("payload is required")
	}
	return nil
}
