package grpc

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"google.golang.org/grpc"
)

const (
	ServiceName      = "revocation.v1.Revocation"
	SubmitFullMethod = "/" + ServiceName + "/Submit"
	QueryFullMethod  = "/" + ServiceName + "/Query"
)

type RevocationServer interface {
	Submit(context.Context, *SubmitRequest) (*model.Record, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
}

func RegisterRevocationServer(s grpc.ServiceRegistrar, srv RevocationServer) {
	s.RegisterService(&RevocationServiceDesc, srv)
}

var RevocationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RevocationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "revocation/v1/revocation.json",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RevocationServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RevocationServer).Submit(ctx, req.(*SubmitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RevocationServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RevocationServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RevocationClient calls the service over a connection using the JSON codec.
type RevocationClient struct {
	cc grpc.ClientConnInterface
}

func NewRevocationClient(cc grpc.ClientConnInterface) *RevocationClient {
	return &RevocationClient{cc: cc}
}

func (c *RevocationClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*model.Record, error) {
	out := new(model.Record)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SubmitFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RevocationClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, QueryFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
