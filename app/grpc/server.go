package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/mapper"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type paymentService interface {
	GetPayment(ctx context.Context, id uint64) (*entity.Payment, error)
	PaymentAudit(ctx context.Context, paymentID uint64) ([]*entity.PaymentEvent, error)
	Cancel(ctx context.Context, paymentID uint64, source string) (bool, error)
	SettleLateConfirmation(ctx context.Context, paymentID uint64) (bool, error)
}

// Server is the operator surface used to inspect payments and settle late
// confirmations by hand.
type Server struct {
	paymentService paymentService
}

var _ types.OperatorServiceServer = (*Server)(nil)

func NewServer(paymentService paymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"status": "ok"})
}

func (s *Server) GetPayment(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid payment id")
	}

	item, err := s.paymentService.GetPayment(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err, "Get payment failed")
	}

	audit, err := s.paymentService.PaymentAudit(ctx, item.ID)
	if err != nil {
		return nil, s.mapError(ctx, err, "Load payment audit failed")
	}
	return paymentReply(item, map[string]interface{}{"events": mapper.PaymentEventsToValues(audit)})
}

// CancelPayment cancels a pending payment. A payment that is already resolved
// is returned unchanged with resolved=false.
func (s *Server) CancelPayment(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid payment id")
	}

	won, err := s.paymentService.Cancel(ctx, req.GetValue(), service.SourceOperator)
	if err != nil {
		return nil, s.mapError(ctx, err, "Cancel payment failed")
	}

	item, err := s.paymentService.GetPayment(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err, "Reload payment failed")
	}
	return paymentReply(item, map[string]interface{}{"resolved": won})
}

// GrantEntitlement settles a late confirmation. granted=false means the user
// already had access.
func (s *Server) GrantEntitlement(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid payment id")
	}

	granted, err := s.paymentService.SettleLateConfirmation(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err, "Grant entitlement failed")
	}

	item, err := s.paymentService.GetPayment(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err, "Reload payment failed")
	}
	loggerWithContext(ctx).WithField("payment_id", item.ID).WithField("granted", granted).Info("Entitlement settled by operator")
	return paymentReply(item, map[string]interface{}{"granted": granted})
}

func (s *Server) mapError(ctx context.Context, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		return status.Error(codes.NotFound, "payment not found")
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		loggerWithContext(ctx).WithError(err).Error(message)
		return status.Error(codes.Internal, "internal server error")
	}
}

func paymentReply(item *entity.Payment, extra map[string]interface{}) (*structpb.Struct, error) {
	payment, err := mapper.PaymentToStruct(item)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}

	fields := map[string]interface{}{"payment": payment.AsMap()}
	for k, v := range extra {
		fields[k] = v
	}
	reply, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return reply, nil
}
