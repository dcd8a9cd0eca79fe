package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/types"
)

type controllerPaymentService struct {
	getPaymentFn   func(ctx context.Context, id uint64) (*entity.Payment, error)
	notificationFn func(ctx context.Context, providerCode string, body []byte) error

	notifications int
}

func (s *controllerPaymentService) GetPayment(ctx context.Context, id uint64) (*entity.Payment, error) {
	if s.getPaymentFn != nil {
		return s.getPaymentFn(ctx, id)
	}
	return nil, service.ErrPaymentNotFound
}

func (s *controllerPaymentService) HandleProviderNotification(ctx context.Context, providerCode string, body []byte) error {
	s.notifications++
	if s.notificationFn != nil {
		return s.notificationFn(ctx, providerCode, body)
	}
	return nil
}

func newNotificationContext(provider, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/providers/"+provider, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues(provider)
	return ctx, rec
}

func assertAcknowledged(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload types.MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Message != "ok" {
		t.Fatalf("expected ok message, got %q", payload.Message)
	}
}

func TestHealth(t *testing.T) {
	ctrl := NewPaymentController(&controllerPaymentService{})
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := ctrl.Health(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProviderNotificationPassesBodyThrough(t *testing.T) {
	var gotProvider, gotBody string
	svc := &controllerPaymentService{notificationFn: func(_ context.Context, providerCode string, body []byte) error {
		gotProvider = providerCode
		gotBody = string(body)
		return nil
	}}
	ctrl := NewPaymentController(svc)
	ctx, rec := newNotificationContext("yookassa", `{"event":"payment.succeeded","object":{"id":"yk-1"}}`)

	if err := ctrl.ProviderNotification(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertAcknowledged(t, rec)
	if gotProvider != "yookassa" {
		t.Fatalf("expected yookassa provider, got %q", gotProvider)
	}
	if gotBody != `{"event":"payment.succeeded","object":{"id":"yk-1"}}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestProviderNotificationAcknowledgesFailures(t *testing.T) {
	cases := []error{
		service.ErrProviderUnsupported,
		service.ErrValidation,
		service.ErrPaymentNotFound,
		errors.New("db down"),
	}
	for _, failure := range cases {
		failure := failure
		t.Run(failure.Error(), func(t *testing.T) {
			svc := &controllerPaymentService{notificationFn: func(context.Context, string, []byte) error { return failure }}
			ctrl := NewPaymentController(svc)
			ctx, rec := newNotificationContext("yookassa", `{"event":"payment.canceled"}`)

			_ = ctrl.ProviderNotification(ctx)
			assertAcknowledged(t, rec)
			if svc.notifications != 1 {
				t.Fatalf("expected one delivery, got %d", svc.notifications)
			}
		})
	}
}

func TestProviderNotificationEmptyBodyIsAcknowledged(t *testing.T) {
	svc := &controllerPaymentService{}
	ctrl := NewPaymentController(svc)
	ctx, rec := newNotificationContext("yookassa", "")

	_ = ctrl.ProviderNotification(ctx)
	assertAcknowledged(t, rec)
	if svc.notifications != 0 {
		t.Fatalf("expected empty body to be dropped, got %d deliveries", svc.notifications)
	}
}

func TestGetPaymentBadID(t *testing.T) {
	ctrl := NewPaymentController(&controllerPaymentService{})
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/internal/payments/x", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("x")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	ctrl := NewPaymentController(&controllerPaymentService{})
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/internal/payments/9", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPaymentStorageFailure(t *testing.T) {
	ctrl := NewPaymentController(&controllerPaymentService{getPaymentFn: func(context.Context, uint64) (*entity.Payment, error) {
		return nil, service.ErrStorage
	}})
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/internal/payments/9", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetPaymentSuccess(t *testing.T) {
	now := time.Now().UTC()
	ctrl := NewPaymentController(&controllerPaymentService{getPaymentFn: func(_ context.Context, id uint64) (*entity.Payment, error) {
		return &entity.Payment{
			ID:        id,
			UserID:    501,
			CourseID:  3,
			Amount:    decimal.RequireFromString("1490.00"),
			Currency:  "RUB",
			Status:    entity.PaymentStatusSucceeded,
			Method:    entity.PaymentMethodTelegram,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}})
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/internal/payments/22", nil), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("22")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload types.PaymentEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Payment == nil || payload.Payment.ID != 22 || payload.Payment.Amount != "1490.00" {
		t.Fatalf("unexpected payment payload: %+v", payload.Payment)
	}
}
