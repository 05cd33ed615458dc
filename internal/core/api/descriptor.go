package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names on the wire.
const (
	ServiceName   = "normprops.v1.QueryService"
	ResolveMethod = "/" + ServiceName + "/Resolve"
	QueryMethod   = "/" + ServiceName + "/Query"
)

// QueryServer is the server API for the query service. Messages are
// google.protobuf.Struct so no generated code is needed on either side.
type QueryServer interface {
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// QueryServiceDesc describes the query service for grpc.Server.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "normprops/v1/query.proto",
}

// RegisterQueryServer registers srv on s.
func RegisterQueryServer(s grpc.ServiceRegistrar, srv QueryServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, ResolveMethod, QueryServer.Resolve)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, QueryMethod, QueryServer.Query)
}

func unary(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
	method string,
	call func(QueryServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return call(srv.(QueryServer), ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
	handler := func(ctx context.Context, req any) (any, error) {
		return call(srv.(QueryServer), ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryClient calls the query service.
type QueryClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryClient creates a client over cc.
func NewQueryClient(cc grpc.ClientConnInterface) *QueryClient {
	return &QueryClient{cc: cc}
}

// Resolve calls QueryService.Resolve.
func (c *QueryClient) Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResolveMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Query calls QueryService.Query.
func (c *QueryClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, QueryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Request builds a request message for model and an encoded filter.
func Request(model string, f *structpb.Value) *structpb.Struct {
	fields := map[string]*structpb.Value{"model": structpb.NewStringValue(model)}
	if f != nil {
		fields["filter"] = f
	}
	return &structpb.Struct{Fields: fields}
}
