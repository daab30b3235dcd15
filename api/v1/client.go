package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/drericflores/hstp/pkg/lib"
)

// Client is a typed client for StressRunnerService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := ToStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}
	return FromStruct(out, resp)
}

// Submit submits spec and returns the job id.
func (c *Client) Submit(ctx context.Context, spec lib.JobSpec, opts ...grpc.CallOption) (string, error) {
	var resp SubmitResponse
	if err := c.invoke(ctx, SubmitMethod, &SubmitRequest{Spec: spec}, &resp, opts...); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Stop asks the daemon to stop the job and waits for its final record.
func (c *Client) Stop(ctx context.Context, id string, opts ...grpc.CallOption) (lib.Record, error) {
	var resp StopResponse
	if err := c.invoke(ctx, StopMethod, &StopRequest{ID: id}, &resp, opts...); err != nil {
		return lib.Record{}, err
	}
	return resp.Record, nil
}

func (c *Client) Status(ctx context.Context, id string, opts ...grpc.CallOption) (lib.Record, error) {
	var resp StatusResponse
	if err := c.invoke(ctx, StatusMethod, &StatusRequest{ID: id}, &resp, opts...); err != nil {
		return lib.Record{}, err
	}
	return resp.Record, nil
}

func (c *Client) List(ctx context.Context, opts ...grpc.CallOption) ([]lib.Record, error) {
	var resp ListResponse
	if err := c.invoke(ctx, ListMethod, &ListRequest{}, &resp, opts...); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Events opens the event feed. Cancel ctx to close it.
func (c *Client) Events(ctx context.Context, req EventsRequest, opts ...grpc.CallOption) (*EventStream, error) {
	in, err := ToStruct(&req)
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], EventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// EventStream is the client side of the Events stream.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv returns the next event, io.EOF once the daemon ends the feed.
func (s *EventStream) Recv() (lib.Event, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return lib.Event{}, err
	}
	var ev lib.Event
	if err := FromStruct(out, &ev); err != nil {
		return lib.Event{}, status.Error(codes.Internal, err.Error())
	}
	return ev, nil
}
