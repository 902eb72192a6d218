package controlplane

import (
	"context"
	"fmt"

	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/rpcutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// HostClient is the Controller's view of a Host daemon's RPC surface. A
// real instance dials the daemon over gRPC; tests substitute an
// in-process fake.
type HostClient interface {
	ReportInventory(ctx context.Context) (*hostd.ReportInventoryResponse, error)
	SpawnWarm(ctx context.Context, req *hostd.SpawnWarmRequest) (*hostd.SpawnWarmResponse, error)
	GetOverlays(ctx context.Context, vmID string) (map[string]string, error)
	Pause(ctx context.Context, vmID string) error
	Unpause(ctx context.Context, vmID string) error
	Destroy(ctx context.Context, vmID string) error
	Exec(ctx context.Context, req *hostd.ExecRequest) (*hostd.ExecResponse, error)
}

// GRPCHostClient implements HostClient over a gRPC connection to a Host
// daemon.
type GRPCHostClient struct {
	conn *grpc.ClientConn
}

// DialHost connects to a Host daemon's gRPC endpoint.
func DialHost(addr string) (*GRPCHostClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		rpcutil.DialOption(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to host daemon %s: %w", addr, err)
	}
	return &GRPCHostClient{conn: conn}, nil
}

func (c *GRPCHostClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCHostClient) ReportInventory(ctx context.Context) (*hostd.ReportInventoryResponse, error) {
	out := new(hostd.ReportInventoryResponse)
	if err := rpcutil.Invoke(ctx, c.conn, "/hc.Host/ReportInventory", &hostd.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GRPCHostClient) SpawnWarm(ctx context.Context, req *hostd.SpawnWarmRequest) (*hostd.SpawnWarmResponse, error) {
	out := new(hostd.SpawnWarmResponse)
	if err := rpcutil.Invoke(ctx, c.conn, "/hc.Host/SpawnWarm", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GRPCHostClient) GetOverlays(ctx context.Context, vmID string) (map[string]string, error) {
	out := new(hostd.GetOverlaysResponse)
	req := &hostd.VMIDRequest{VMID: vmID}
	if err := rpcutil.Invoke(ctx, c.conn, "/hc.Host/GetOverlays", req, out); err != nil {
		return nil, err
	}
	return out.Overlays, nil
}

func (c *GRPCHostClient) Pause(ctx context.Context, vmID string) error {
	return rpcutil.Invoke(ctx, c.conn, "/hc.Host/Pause", &hostd.VMIDRequest{VMID: vmID}, new(hostd.Empty))
}

func (c *GRPCHostClient) Unpause(ctx context.Context, vmID string) error {
	return rpcutil.Invoke(ctx, c.conn, "/hc.Host/Unpause", &hostd.VMIDRequest{VMID: vmID}, new(hostd.Empty))
}

func (c *GRPCHostClient) Destroy(ctx context.Context, vmID string) error {
	return rpcutil.Invoke(ctx, c.conn, "/hc.Host/Destroy", &hostd.VMIDRequest{VMID: vmID}, new(hostd.Empty))
}

func (c *GRPCHostClient) Exec(ctx context.Context, req *hostd.ExecRequest) (*hostd.ExecResponse, error) {
	out := new(hostd.ExecResponse)
	if err := rpcutil.Invoke(ctx, c.conn, "/hc.Host/Exec", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
