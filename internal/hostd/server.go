package hostd

import (
	"context"

	"github.com/hypercore/hc/internal/rpcutil"
	"google.golang.org/grpc"
)

// HostServer is the RPC surface a Host daemon exposes to the controller.
type HostServer interface {
	ReportInventory(ctx context.Context, req *Empty) (*ReportInventoryResponse, error)
	SpawnWarmRPC(ctx context.Context, req *SpawnWarmRequest) (*SpawnWarmResponse, error)
	GetOverlaysRPC(ctx context.Context, req *VMIDRequest) (*GetOverlaysResponse, error)
	PauseRPC(ctx context.Context, req *VMIDRequest) (*Empty, error)
	UnpauseRPC(ctx context.Context, req *VMIDRequest) (*Empty, error)
	DestroyRPC(ctx context.Context, req *VMIDRequest) (*Empty, error)
	Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error)
}

// server adapts *Host's plain Go methods to the HostServer RPC surface.
type server struct {
	h *Host
}

// NewServer wraps a Host daemon for RPC registration.
func NewServer(h *Host) HostServer {
	return &server{h: h}
}

func (s *server) ReportInventory(ctx context.Context, req *Empty) (*ReportInventoryResponse, error) {
	return s.h.ReportInventory(ctx)
}

func (s *server) SpawnWarmRPC(ctx context.Context, req *SpawnWarmRequest) (*SpawnWarmResponse, error) {
	id, err := s.h.SpawnWarm(ctx, req.Shape, req.GPUBDF, req.Snapshot)
	if err != nil {
		return nil, err
	}
	return &SpawnWarmResponse{VMID: id}, nil
}

func (s *server) GetOverlaysRPC(ctx context.Context, req *VMIDRequest) (*GetOverlaysResponse, error) {
	overlays, err := s.h.GetOverlays(ctx, req.VMID)
	if err != nil {
		return nil, err
	}
	return &GetOverlaysResponse{Overlays: overlays}, nil
}

func (s *server) PauseRPC(ctx context.Context, req *VMIDRequest) (*Empty, error) {
	return &Empty{}, s.h.Pause(ctx, req.VMID)
}

func (s *server) UnpauseRPC(ctx context.Context, req *VMIDRequest) (*Empty, error) {
	return &Empty{}, s.h.Unpause(ctx, req.VMID)
}

func (s *server) DestroyRPC(ctx context.Context, req *VMIDRequest) (*Empty, error) {
	return &Empty{}, s.h.Destroy(ctx, req.VMID)
}

func (s *server) Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	return s.h.Exec(ctx, req)
}

// ServiceDesc is the hand-written grpc.ServiceDesc for the Host RPC
// surface: no protoc codegen, just rpcutil.UnaryHandler adapters over the
// JSON codec registered in rpcutil.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "hc.Host",
	HandlerType: (*HostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReportInventory", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *Empty) (*ReportInventoryResponse, error) {
			return s.ReportInventory(ctx, req)
		})},
		{MethodName: "SpawnWarm", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *SpawnWarmRequest) (*SpawnWarmResponse, error) {
			return s.SpawnWarmRPC(ctx, req)
		})},
		{MethodName: "GetOverlays", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *VMIDRequest) (*GetOverlaysResponse, error) {
			return s.GetOverlaysRPC(ctx, req)
		})},
		{MethodName: "Pause", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *VMIDRequest) (*Empty, error) {
			return s.PauseRPC(ctx, req)
		})},
		{MethodName: "Unpause", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *VMIDRequest) (*Empty, error) {
			return s.UnpauseRPC(ctx, req)
		})},
		{MethodName: "Destroy", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *VMIDRequest) (*Empty, error) {
			return s.DestroyRPC(ctx, req)
		})},
		{MethodName: "Exec", Handler: rpcutil.UnaryHandler(func(s HostServer, ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
			return s.Exec(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hc/host.proto",
}

// RegisterHostServer registers a HostServer implementation on a gRPC
// server under the /hc.Host/* method names used by GRPCHostClient.
func RegisterHostServer(s *grpc.Server, srv HostServer) {
	s.RegisterService(&ServiceDesc, srv)
}
