package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type grpcPaymentService struct {
	getPaymentFn func(ctx context.Context, id uint64) (*entity.Payment, error)
	auditFn      func(ctx context.Context, paymentID uint64) ([]*entity.PaymentEvent, error)
	cancelFn     func(ctx context.Context, paymentID uint64, source string) (bool, error)
	settleFn     func(ctx context.Context, paymentID uint64) (bool, error)
}

func (s *grpcPaymentService) GetPayment(ctx context.Context, id uint64) (*entity.Payment, error) {
	if s.getPaymentFn != nil {
		return s.getPaymentFn(ctx, id)
	}
	return nil, service.ErrPaymentNotFound
}

func (s *grpcPaymentService) PaymentAudit(ctx context.Context, paymentID uint64) ([]*entity.PaymentEvent, error) {
	if s.auditFn != nil {
		return s.auditFn(ctx, paymentID)
	}
	return []*entity.PaymentEvent{}, nil
}

func (s *grpcPaymentService) Cancel(ctx context.Context, paymentID uint64, source string) (bool, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, paymentID, source)
	}
	return false, nil
}

func (s *grpcPaymentService) SettleLateConfirmation(ctx context.Context, paymentID uint64) (bool, error) {
	if s.settleFn != nil {
		return s.settleFn(ctx, paymentID)
	}
	return false, nil
}

func storedPayment(status string) func(context.Context, uint64) (*entity.Payment, error) {
	return func(_ context.Context, id uint64) (*entity.Payment, error) {
		now := time.Now().UTC()
		return &entity.Payment{
			ID:        id,
			UserID:    501,
			CourseID:  3,
			Amount:    decimal.RequireFromString("1490.00"),
			Currency:  "RUB",
			Status:    status,
			Method:    entity.PaymentMethodYooKassa,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
}

func TestHealth(t *testing.T) {
	srv := NewServer(&grpcPaymentService{})
	resp, err := srv.Health(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != "ok" {
		t.Fatalf("unexpected health response: %v", resp)
	}
}

func TestGetPaymentValidation(t *testing.T) {
	srv := NewServer(&grpcPaymentService{})
	_, err := srv.GetPayment(context.Background(), wrapperspb.UInt64(0))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	srv := NewServer(&grpcPaymentService{})
	_, err := srv.GetPayment(context.Background(), wrapperspb.UInt64(9))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetPaymentInternal(t *testing.T) {
	srv := NewServer(&grpcPaymentService{getPaymentFn: func(context.Context, uint64) (*entity.Payment, error) {
		return nil, errors.New("db down")
	}})
	_, err := srv.GetPayment(context.Background(), wrapperspb.UInt64(9))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestGetPaymentSuccess(t *testing.T) {
	srv := NewServer(&grpcPaymentService{
		getPaymentFn: storedPayment(entity.PaymentStatusPending),
		auditFn: func(context.Context, uint64) ([]*entity.PaymentEvent, error) {
			return []*entity.PaymentEvent{{EventType: "payment_created", Source: "telegram", NewStatus: entity.PaymentStatusPending}}, nil
		},
	})
	resp, err := srv.GetPayment(context.Background(), wrapperspb.UInt64(14))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payment := resp.GetFields()["payment"].GetStructValue().GetFields()
	if payment["id"].GetStringValue() != "14" || payment["status"].GetStringValue() != entity.PaymentStatusPending {
		t.Fatalf("unexpected payment: %v", payment)
	}
	events := resp.GetFields()["events"].GetListValue().GetValues()
	if len(events) != 1 || events[0].GetStructValue().GetFields()["event_type"].GetStringValue() != "payment_created" {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestCancelPaymentUsesOperatorSource(t *testing.T) {
	var gotSource string
	srv := NewServer(&grpcPaymentService{
		getPaymentFn: storedPayment(entity.PaymentStatusCanceled),
		cancelFn: func(_ context.Context, _ uint64, source string) (bool, error) {
			gotSource = source
			return true, nil
		},
	})

	resp, err := srv.CancelPayment(context.Background(), wrapperspb.UInt64(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSource != service.SourceOperator {
		t.Fatalf("expected operator source, got %q", gotSource)
	}
	if !resp.GetFields()["resolved"].GetBoolValue() {
		t.Fatal("expected resolved=true")
	}
}

func TestCancelPaymentAlreadyResolved(t *testing.T) {
	srv := NewServer(&grpcPaymentService{getPaymentFn: storedPayment(entity.PaymentStatusSucceeded)})

	resp, err := srv.CancelPayment(context.Background(), wrapperspb.UInt64(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["resolved"].GetBoolValue() {
		t.Fatal("expected resolved=false")
	}
	payment := resp.GetFields()["payment"].GetStructValue().GetFields()
	if payment["status"].GetStringValue() != entity.PaymentStatusSucceeded {
		t.Fatalf("expected unchanged status, got %v", payment["status"])
	}
}

func TestCancelPaymentNotFound(t *testing.T) {
	srv := NewServer(&grpcPaymentService{cancelFn: func(context.Context, uint64, string) (bool, error) {
		return false, service.ErrPaymentNotFound
	}})
	_, err := srv.CancelPayment(context.Background(), wrapperspb.UInt64(5))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGrantEntitlement(t *testing.T) {
	var settled uint64
	srv := NewServer(&grpcPaymentService{
		getPaymentFn: storedPayment(entity.PaymentStatusCanceled),
		settleFn: func(_ context.Context, paymentID uint64) (bool, error) {
			settled = paymentID
			return true, nil
		},
	})

	resp, err := srv.GrantEntitlement(context.Background(), wrapperspb.UInt64(21))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled != 21 {
		t.Fatalf("expected payment 21 to be settled, got %d", settled)
	}
	if !resp.GetFields()["granted"].GetBoolValue() {
		t.Fatal("expected granted=true")
	}
}

func TestGrantEntitlementStorageFailure(t *testing.T) {
	srv := NewServer(&grpcPaymentService{settleFn: func(context.Context, uint64) (bool, error) {
		return false, service.ErrStorage
	}})
	_, err := srv.GrantEntitlement(context.Background(), wrapperspb.UInt64(21))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestGrantEntitlementRejectsPaymentWithoutLateConfirmation(t *testing.T) {
	srv := NewServer(&grpcPaymentService{settleFn: func(context.Context, uint64) (bool, error) {
		return false, fmt.Errorf("%w: payment is pending, not canceled", service.ErrValidation)
	}})
	_, err := srv.GrantEntitlement(context.Background(), wrapperspb.UInt64(21))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
