package rpcutil

import (
	"context"

	"google.golang.org/grpc"
)

// UnaryHandler adapts a plain (server, ctx, *Req) -> (*Resp, error) method
// into the grpc.MethodDesc.Handler shape that grpc.ServiceDesc expects,
// without requiring generated protobuf stubs. Request/response bodies are
// decoded with whatever grpc.Codec the call negotiated (see codec.go).
func UnaryHandler[S any, Req any, Resp any](method func(srv S, ctx context.Context, req *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		typed := srv.(S)
		if interceptor == nil {
			resp, err := method(typed, ctx, in)
			return resp, ToStatus(err)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := method(typed, ctx, req.(*Req))
			return resp, ToStatus(err)
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Invoke is a thin wrapper around grpc.ClientConn.Invoke that always
// negotiates the JSON codec registered in codec.go.
func Invoke(ctx context.Context, cc *grpc.ClientConn, method string, req, resp any) error {
	return cc.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(CodecName))
}

// DialOption returns the client dial option that forces every call on the
// connection to use the JSON codec by default.
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))
}
