// Package linkaccess describes the guardshare.v1.LinkAccess gRPC service.
//
// Messages travel as google.protobuf.Struct so that no generated code is
// needed; Request and Outcome convert them to and from Go values.
package linkaccess

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "guardshare.v1.LinkAccess"
	ViewMethod     = "/" + ServiceName + "/View"
	DownloadMethod = "/" + ServiceName + "/Download"
)

// Server is implemented by the gRPC transport.
type Server interface {
	View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Download(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "View", Handler: unaryHandler(ViewMethod, Server.View)},
		{MethodName: "Download", Handler: unaryHandler(DownloadMethod, Server.Download)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guardshare/v1/link_access.proto",
}

func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

type method func(Server, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call method) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(Server), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls LinkAccess over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) View(ctx context.Context, req Request, opts ...grpc.CallOption) (*Outcome, error) {
	return c.invoke(ctx, ViewMethod, req, opts...)
}

func (c *Client) Download(ctx context.Context, req Request, opts ...grpc.CallOption) (*Outcome, error) {
	return c.invoke(ctx, DownloadMethod, req, opts...)
}

func (c *Client) invoke(ctx context.Context, fullMethod string, req Request, opts ...grpc.CallOption) (*Outcome, error) {
	in, err := req.Struct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return OutcomeFromStruct(out)
}
