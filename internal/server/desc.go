package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "transferguard.v1.TransferGuard"

// TransferGuardServer is the server API. Messages are google.protobuf.Struct
// carrying the JSON shapes of guard.Request and guard.Result.
type TransferGuardServer interface {
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deny(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPending(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(TransferGuardServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TransferGuardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TransferGuardServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the TransferGuard service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransferGuardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Validate", TransferGuardServer.Validate),
		unary("Approve", TransferGuardServer.Approve),
		unary("Deny", TransferGuardServer.Deny),
		unary("ListPending", TransferGuardServer.ListPending),
		unary("History", TransferGuardServer.History),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transferguard/v1/transferguard.proto",
}
