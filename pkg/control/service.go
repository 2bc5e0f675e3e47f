package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	WatchdogServiceName = "hsu.watchdog.v1.WatchdogService"

	statusMethod        = "Status"
	targetStatusMethod  = "TargetStatus"
	proposeConfigMethod = "ProposeConfig"
	startTargetMethod   = "StartTarget"
	stopTargetMethod    = "StopTarget"
)

// WatchdogServiceServer is the server side of the watchdog control service.
// Requests and replies are google.protobuf.Struct documents.
type WatchdogServiceServer interface {
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TargetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProposeConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartTarget(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopTarget(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedWatchdogServiceServer can be embedded for forward compatibility.
type UnimplementedWatchdogServiceServer struct{}

func (UnimplementedWatchdogServiceServer) Status(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Status not implemented")
}

func (UnimplementedWatchdogServiceServer) TargetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TargetStatus not implemented")
}

func (UnimplementedWatchdogServiceServer) ProposeConfig(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ProposeConfig not implemented")
}

func (UnimplementedWatchdogServiceServer) StartTarget(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method StartTarget not implemented")
}

func (UnimplementedWatchdogServiceServer) StopTarget(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method StopTarget not implemented")
}

func RegisterWatchdogServiceServer(registrar grpc.ServiceRegistrar, server WatchdogServiceServer) {
	registrar.RegisterService(&watchdogServiceDesc, server)
}

type unaryMethod func(WatchdogServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WatchdogServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(WatchdogServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var watchdogServiceDesc = grpc.ServiceDesc{
	ServiceName: WatchdogServiceName,
	HandlerType: (*WatchdogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(statusMethod, WatchdogServiceServer.Status),
		unaryHandler(targetStatusMethod, WatchdogServiceServer.TargetStatus),
		unaryHandler(proposeConfigMethod, WatchdogServiceServer.ProposeConfig),
		unaryHandler(startTargetMethod, WatchdogServiceServer.StartTarget),
		unaryHandler(stopTargetMethod, WatchdogServiceServer.StopTarget),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hsu/watchdog/v1/watchdog.proto",
}

func fullMethod(method string) string {
	return "/" + WatchdogServiceName + "/" + method
}

// WatchdogServiceClient is the client side of the watchdog control service.
type WatchdogServiceClient interface {
	Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	TargetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ProposeConfig(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StartTarget(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StopTarget(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

func NewWatchdogServiceClient(cc grpc.ClientConnInterface) WatchdogServiceClient {
	return &watchdogServiceClient{cc: cc}
}

type watchdogServiceClient struct {
	cc grpc.ClientConnInterface
}

func (c *watchdogServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *watchdogServiceClient) Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, statusMethod, in, opts)
}

func (c *watchdogServiceClient) TargetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, targetStatusMethod, in, opts)
}

func (c *watchdogServiceClient) ProposeConfig(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, proposeConfigMethod, in, opts)
}

func (c *watchdogServiceClient) StartTarget(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, startTargetMethod, in, opts)
}

func (c *watchdogServiceClient) StopTarget(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, stopTargetMethod, in, opts)
}
