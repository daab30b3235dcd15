package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/drericflores/hstp/pkg/lib"
)

const (
	ServiceName = "hstp.v1.StressRunnerService"

	SubmitMethod = "/" + ServiceName + "/Submit"
	StopMethod   = "/" + ServiceName + "/Stop"
	StatusMethod = "/" + ServiceName + "/Status"
	ListMethod   = "/" + ServiceName + "/List"
	EventsMethod = "/" + ServiceName + "/Events"
)

// StressRunnerServiceServer is the server API for StressRunnerService.
type StressRunnerServiceServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	Stop(context.Context, *StopRequest) (*StopResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Events(*EventsRequest, EventsServer) error
}

// EventsServer is the server side of the Events stream.
type EventsServer interface {
	Send(lib.Event) error
	Context() context.Context
}

// UnimplementedStressRunnerServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedStressRunnerServiceServer struct{}

func (UnimplementedStressRunnerServiceServer) Submit(context.Context, *SubmitRequest) (*SubmitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}

func (UnimplementedStressRunnerServiceServer) Stop(context.Context, *StopRequest) (*StopResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Stop not implemented")
}

func (UnimplementedStressRunnerServiceServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Status not implemented")
}

func (UnimplementedStressRunnerServiceServer) List(context.Context, *ListRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}

func (UnimplementedStressRunnerServiceServer) Events(*EventsRequest, EventsServer) error {
	return status.Error(codes.Unimplemented, "method Events not implemented")
}

func RegisterStressRunnerServiceServer(s grpc.ServiceRegistrar, srv StressRunnerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for StressRunnerService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StressRunnerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Submit",
			Handler: unaryHandler(SubmitMethod, func(srv StressRunnerServiceServer, ctx context.Context, in *SubmitRequest) (*SubmitResponse, error) {
				return srv.Submit(ctx, in)
			}),
		},
		{
			MethodName: "Stop",
			Handler: unaryHandler(StopMethod, func(srv StressRunnerServiceServer, ctx context.Context, in *StopRequest) (*StopResponse, error) {
				return srv.Stop(ctx, in)
			}),
		},
		{
			MethodName: "Status",
			Handler: unaryHandler(StatusMethod, func(srv StressRunnerServiceServer, ctx context.Context, in *StatusRequest) (*StatusResponse, error) {
				return srv.Status(ctx, in)
			}),
		},
		{
			MethodName: "List",
			Handler: unaryHandler(ListMethod, func(srv StressRunnerServiceServer, ctx context.Context, in *ListRequest) (*ListResponse, error) {
				return srv.List(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "hstp/v1/service.proto",
}

// unaryHandler decodes the Struct request into Req, calls the server and
// encodes Resp back. Interceptors see the Struct messages.
func unaryHandler[Req, Resp any](
	method string,
	call func(StressRunnerServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handle := func(ctx context.Context, req any) (any, error) {
			var r Req
			if err := FromStruct(req.(*structpb.Struct), &r); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(StressRunnerServiceServer), ctx, &r)
			if err != nil {
				return nil, err
			}
			out, err := ToStruct(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}
		if interceptor == nil {
			return handle(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, handle)
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req EventsRequest
	if err := FromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(StressRunnerServiceServer).Events(&req, &eventsServer{stream})
}

type eventsServer struct {
	grpc.ServerStream
}

func (s *eventsServer) Send(ev lib.Event) error {
	out, err := ToStruct(ev)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return s.ServerStream.SendMsg(out)
}
