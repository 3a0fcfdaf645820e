// Service descriptor and client for cfmock.v1.RepositoryService
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "cfmock.v1.RepositoryService"

// Full method names
const (
	MethodGetResource = "/" + ServiceName + "/GetResource"
	MethodGetFragment = "/" + ServiceName + "/GetFragment"
	MethodStats       = "/" + ServiceName + "/Stats"
)

// RepositoryServiceServer is the server API for RepositoryService.
// Requests and responses are free-form structs.
type RepositoryServiceServer interface {
	GetResource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFragment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RepositoryService_ServiceDesc is the grpc.ServiceDesc for RepositoryService
var RepositoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RepositoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetResource",
			Handler:    unaryHandler(MethodGetResource, RepositoryServiceServer.GetResource),
		},
		{
			MethodName: "GetFragment",
			Handler:    unaryHandler(MethodGetFragment, RepositoryServiceServer.GetFragment),
		},
		{
			MethodName: "Stats",
			Handler:    unaryHandler(MethodStats, RepositoryServiceServer.Stats),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cfmock/v1/repository.proto",
}

// RegisterRepositoryServiceServer registers srv with s
func RegisterRepositoryServiceServer(s grpc.ServiceRegistrar, srv RepositoryServiceServer) {
	s.RegisterService(&RepositoryService_ServiceDesc, srv)
}

type unaryMethod func(RepositoryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RepositoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RepositoryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls RepositoryService over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetResource dumps the node at path with depth levels of children
func (c *Client) GetResource(ctx context.Context, path string, depth int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetResource, map[string]any{"path": path, "depth": depth}, opts...)
}

// GetFragment dumps the content fragment at path
func (c *Client) GetFragment(ctx context.Context, path string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetFragment, map[string]any{"path": path}, opts...)
}

// Stats returns repository and server statistics
func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodStats, nil, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
