package controlplane

import (
	"context"

	"github.com/hypercore/hc/internal/rpcutil"
	"google.golang.org/grpc"
)

// ControllerServer is the RPC surface the Controller exposes to clients.
type ControllerServer interface {
	CreatePool(ctx context.Context, req *CreatePoolRequest) (*Pool, error)
	ListPools(ctx context.Context, req *Empty) (*ListPoolsResponse, error)
	ListPoolHosts(ctx context.Context, req *ListPoolHostsRequest) (*ListPoolHostsResponse, error)
	EnsureWarm(ctx context.Context, req *EnsureWarmPoolRequest) (*EnsureWarmPoolResponse, error)
	Fork(ctx context.Context, req *ForkRequest) (*ForkResponse, error)
	Acquire(ctx context.Context, req *AcquireRequest) (*AcquireResponse, error)
	Release(ctx context.Context, req *ReleaseRequest) (*Empty, error)
	Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error)
	Health(ctx context.Context, req *Empty) (*HealthResponse, error)
}

// server adapts *Controller's plain Go methods to the ControllerServer RPC
// surface.
type server struct {
	c *Controller
}

// NewServer wraps a Controller for RPC registration.
func NewServer(c *Controller) ControllerServer {
	return &server{c: c}
}

func (s *server) CreatePool(ctx context.Context, req *CreatePoolRequest) (*Pool, error) {
	p := s.c.CreatePool(req.Spec)
	return &p, nil
}

func (s *server) ListPools(ctx context.Context, req *Empty) (*ListPoolsResponse, error) {
	return &ListPoolsResponse{Pools: s.c.ListPools()}, nil
}

func (s *server) ListPoolHosts(ctx context.Context, req *ListPoolHostsRequest) (*ListPoolHostsResponse, error) {
	hosts, err := s.c.ListPoolHosts(req.PoolID)
	if err != nil {
		return nil, err
	}
	return &ListPoolHostsResponse{Hosts: hosts}, nil
}

func (s *server) EnsureWarm(ctx context.Context, req *EnsureWarmPoolRequest) (*EnsureWarmPoolResponse, error) {
	current, err := s.c.EnsureWarm(ctx, req.PoolID, req.Shape, req.Target)
	if err != nil {
		return nil, err
	}
	return &EnsureWarmPoolResponse{Current: current}, nil
}

func (s *server) Fork(ctx context.Context, req *ForkRequest) (*ForkResponse, error) {
	children, err := s.c.Fork(ctx, req.VMID, req.HowMany)
	if err != nil {
		return nil, err
	}
	return &ForkResponse{VMIDs: children}, nil
}

func (s *server) Acquire(ctx context.Context, req *AcquireRequest) (*AcquireResponse, error) {
	handle, err := s.c.Acquire(ctx, req.Shape)
	if err != nil {
		return nil, err
	}
	return &AcquireResponse{VM: *handle}, nil
}

func (s *server) Release(ctx context.Context, req *ReleaseRequest) (*Empty, error) {
	return &Empty{}, s.c.Release(ctx, req.VMID, req.Recycle)
}

func (s *server) Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	return s.c.Exec(ctx, req)
}

func (s *server) Health(ctx context.Context, req *Empty) (*HealthResponse, error) {
	return s.c.Health(ctx), nil
}

// ServiceDesc is the hand-written grpc.ServiceDesc for the Controller RPC
// surface.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "hc.Controller",
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreatePool", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *CreatePoolRequest) (*Pool, error) {
			return s.CreatePool(ctx, req)
		})},
		{MethodName: "ListPools", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *Empty) (*ListPoolsResponse, error) {
			return s.ListPools(ctx, req)
		})},
		{MethodName: "ListPoolHosts", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *ListPoolHostsRequest) (*ListPoolHostsResponse, error) {
			return s.ListPoolHosts(ctx, req)
		})},
		{MethodName: "EnsureWarm", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *EnsureWarmPoolRequest) (*EnsureWarmPoolResponse, error) {
			return s.EnsureWarm(ctx, req)
		})},
		{MethodName: "Fork", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *ForkRequest) (*ForkResponse, error) {
			return s.Fork(ctx, req)
		})},
		{MethodName: "Acquire", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *AcquireRequest) (*AcquireResponse, error) {
			return s.Acquire(ctx, req)
		})},
		{MethodName: "Release", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *ReleaseRequest) (*Empty, error) {
			return s.Release(ctx, req)
		})},
		{MethodName: "Exec", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
			return s.Exec(ctx, req)
		})},
		{MethodName: "Health", Handler: rpcutil.UnaryHandler(func(s ControllerServer, ctx context.Context, req *Empty) (*HealthResponse, error) {
			return s.Health(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hc/controller.proto",
}

// RegisterControllerServer registers a ControllerServer implementation on
// a gRPC server.
func RegisterControllerServer(s *grpc.Server, srv ControllerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
