package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/provider"
)

type fakePresenter struct {
	steps      []string
	token      string
	linkURL    string
	linkMsgID  int
	messageID  int
	invoiceErr error
	linkErr    error
}

func (p *fakePresenter) PresentInvoice(_ context.Context, _ *entity.Payment, _ *entity.Course, token string) (int, error) {
	p.steps = append(p.steps, "invoice")
	p.token = token
	return p.messageID, p.invoiceErr
}

func (p *fakePresenter) PresentPending(_ context.Context, _ *entity.Payment, _ *entity.Course) (int, error) {
	p.steps = append(p.steps, "pending")
	return p.messageID, p.invoiceErr
}

func (p *fakePresenter) PresentPaymentLink(_ context.Context, _ *entity.Payment, _ *entity.Course, messageID int, url string) error {
	p.steps = append(p.steps, "link")
	p.linkMsgID = messageID
	p.linkURL = url
	return p.linkErr
}

func TestStartPurchaseTelegramArmsTimerAfterAttach(t *testing.T) {
	svc, deps := newTestService()
	presenter := &fakePresenter{messageID: 321}

	var attachedAtArm *int
	deps.scheduler.onArm = func(id uint64) {
		stored, _ := deps.payments.FindByID(context.Background(), id)
		attachedAtArm = stored.InvoiceMessageID
	}

	payment, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodTelegram, presenter)
	if err != nil {
		t.Fatalf("start purchase failed: %v", err)
	}
	if presenter.token != tokenFor(payment) {
		t.Fatalf("unexpected invoice token %q", presenter.token)
	}
	if attachedAtArm == nil || *attachedAtArm != 321 {
		t.Fatalf("expected message id attached before timer armed, got %v", attachedAtArm)
	}
	if _, ok := deps.scheduler.scheduled[payment.ID]; !ok {
		t.Fatal("expected expiry timer")
	}
	if !payment.Amount.Equal(deps.payments.payments[payment.ID].Amount) {
		t.Fatal("expected amount from course price")
	}
}

func TestStartPurchaseYooKassaIssuesGatewayPayment(t *testing.T) {
	gateway := &fakeProvider{}
	svc, deps := newTestService(gateway)
	presenter := &fakePresenter{messageID: 44}

	payment, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodYooKassa, presenter)
	if err != nil {
		t.Fatalf("start purchase failed: %v", err)
	}

	if len(presenter.steps) != 2 || presenter.steps[0] != "pending" || presenter.steps[1] != "link" {
		t.Fatalf("unexpected presentation order: %v", presenter.steps)
	}
	if presenter.linkMsgID != 44 || presenter.linkURL != "https://pay.example/checkout" {
		t.Fatalf("unexpected link presentation: msg=%d url=%s", presenter.linkMsgID, presenter.linkURL)
	}
	if len(gateway.created) != 1 || gateway.created[0].MessageID != 44 || gateway.created[0].PaymentID != payment.ID {
		t.Fatalf("expected gateway payment with metadata, got %+v", gateway.created)
	}

	stored, _ := deps.payments.FindByID(context.Background(), payment.ID)
	if stored.ProviderPaymentID == nil || *stored.ProviderPaymentID == "" {
		t.Fatal("expected provider payment id attached")
	}
	if _, ok := deps.scheduler.scheduled[payment.ID]; !ok {
		t.Fatal("expected expiry timer")
	}
}

func TestStartPurchaseProviderFailureAbandonsPayment(t *testing.T) {
	gateway := &fakeProvider{createErr: errors.New("gateway down")}
	svc, deps := newTestService(gateway)

	_, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodYooKassa, &fakePresenter{messageID: 1})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("expected ErrProviderFailed, got %v", err)
	}
	if deps.payments.status(1) != entity.PaymentStatusCanceled {
		t.Fatalf("expected abandoned payment to be canceled, got %s", deps.payments.status(1))
	}
	if len(deps.scheduler.scheduled) != 0 {
		t.Fatal("expected no timer for abandoned payment")
	}
	if deps.events.countType("payment_abandoned") != 1 {
		t.Fatal("expected payment_abandoned audit row")
	}
}

func TestStartPurchasePresentationFailure(t *testing.T) {
	svc, deps := newTestService()

	_, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodTelegram, &fakePresenter{invoiceErr: errors.New("blocked")})
	if !errors.Is(err, ErrNotification) {
		t.Fatalf("expected ErrNotification, got %v", err)
	}
	if deps.payments.status(1) != entity.PaymentStatusCanceled {
		t.Fatal("expected payment canceled")
	}
	_, canceled, _ := deps.notifier.counts()
	if canceled != 0 {
		t.Fatal("expected no chat effects for abandoned payment")
	}
}

func TestStartPurchaseAttachFailureAbandonsPayment(t *testing.T) {
	svc, deps := newTestService()
	deps.payments.failAttach = errors.New("deadlock found")

	_, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodTelegram, &fakePresenter{messageID: 12})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if deps.payments.status(1) != entity.PaymentStatusCanceled {
		t.Fatal("expected payment canceled")
	}
	if len(deps.scheduler.scheduled) != 0 {
		t.Fatal("expected no timer without an attached message")
	}
	if deps.events.countType("payment_abandoned") != 1 {
		t.Fatal("expected payment_abandoned audit row")
	}
}

func TestStartPurchaseRejectsUnknownOrOwnedCourse(t *testing.T) {
	svc, deps := newTestService()

	if _, err := svc.StartPurchase(context.Background(), 1001, 404, entity.PaymentMethodTelegram, &fakePresenter{}); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}

	_, _ = deps.entitlements.Grant(context.Background(), &entity.Entitlement{UserID: 1001, CourseID: 3})
	if _, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodTelegram, &fakePresenter{}); !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
	if len(deps.payments.payments) != 0 {
		t.Fatal("expected no payment rows")
	}
}

func TestStartPurchaseUnsupportedProvider(t *testing.T) {
	svc, _ := newTestService(&otherProvider{})

	_, err := svc.StartPurchase(context.Background(), 1001, 3, entity.PaymentMethodYooKassa, &fakePresenter{messageID: 1})
	if !errors.Is(err, ErrProviderUnsupported) {
		t.Fatalf("expected ErrProviderUnsupported, got %v", err)
	}
}

type otherProvider struct{ fakeProvider }

func (p *otherProvider) Code() string { return "other" }

var _ provider.Provider = (*otherProvider)(nil)
