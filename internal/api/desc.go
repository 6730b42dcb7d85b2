package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// strategyServer is the handler type registered under ServiceName.
type strategyServer interface {
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Signal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Backtest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ strategyServer = (*Server)(nil)

// Full method names.
const (
	MethodDescribe = "/" + ServiceName + "/Describe"
	MethodSignal   = "/" + ServiceName + "/Signal"
	MethodBacktest = "/" + ServiceName + "/Backtest"
	MethodCompare  = "/" + ServiceName + "/Compare"
	MethodReport   = "/" + ServiceName + "/Report"
)

// unaryHandler adapts one strategyServer method to a grpc.MethodHandler.
func unaryHandler(fullMethod string, call func(strategyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(strategyServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(strategyServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*strategyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: unaryHandler(MethodDescribe, strategyServer.Describe)},
		{MethodName: "Signal", Handler: unaryHandler(MethodSignal, strategyServer.Signal)},
		{MethodName: "Backtest", Handler: unaryHandler(MethodBacktest, strategyServer.Backtest)},
		{MethodName: "Compare", Handler: unaryHandler(MethodCompare, strategyServer.Compare)},
		{MethodName: "Report", Handler: unaryHandler(MethodReport, strategyServer.Report)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dongpa/v1/strategy.proto",
}
