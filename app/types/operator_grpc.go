package types

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const OperatorServiceName = "courseshop.v1.OperatorService"

const (
	OperatorService_Health_FullMethodName           = "/" + OperatorServiceName + "/Health"
	OperatorService_GetPayment_FullMethodName       = "/" + OperatorServiceName + "/GetPayment"
	OperatorService_CancelPayment_FullMethodName    = "/" + OperatorServiceName + "/CancelPayment"
	OperatorService_GrantEntitlement_FullMethodName = "/" + OperatorServiceName + "/GrantEntitlement"
)

// OperatorServiceServer is the operator surface. Requests carry a payment id;
// replies are payment documents.
type OperatorServiceServer interface {
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetPayment(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	CancelPayment(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	GrantEntitlement(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
}

func RegisterOperatorServiceServer(s grpc.ServiceRegistrar, srv OperatorServiceServer) {
	s.RegisterService(&OperatorService_ServiceDesc, srv)
}

func _OperatorService_Health_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OperatorServiceServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OperatorService_Health_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OperatorServiceServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func paymentIDHandler(method string, call func(OperatorServiceServer, context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.UInt64Value)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OperatorServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OperatorServiceServer), ctx, req.(*wrapperspb.UInt64Value))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var OperatorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: OperatorServiceName,
	HandlerType: (*OperatorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Health",
			Handler:    _OperatorService_Health_Handler,
		},
		{
			MethodName: "GetPayment",
			Handler:    paymentIDHandler(OperatorService_GetPayment_FullMethodName, OperatorServiceServer.GetPayment),
		},
		{
			MethodName: "CancelPayment",
			Handler:    paymentIDHandler(OperatorService_CancelPayment_FullMethodName, OperatorServiceServer.CancelPayment),
		},
		{
			MethodName: "GrantEntitlement",
			Handler:    paymentIDHandler(OperatorService_GrantEntitlement_FullMethodName, OperatorServiceServer.GrantEntitlement),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courseshop/v1/operator.proto",
}
