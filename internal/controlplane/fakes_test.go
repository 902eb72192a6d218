package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hypercore/hc/internal/hostd"
)

// fakeIDGen mints deterministic, incrementing IDs for reproducible tests.
type fakeIDGen struct {
	n atomic.Int64
}

func (g *fakeIDGen) New() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

// fakeHostClient is an in-process stand-in for a Host daemon's gRPC
// surface, driven entirely by test-controlled behavior instead of a real
// emulator.
type fakeHostClient struct {
	mu sync.Mutex

	spawnN          int
	spawnAttempts   int
	spawnErr        error
	spawnFailFirstN int // when >0, the first N SpawnWarm calls fail with errFakeSpawn
	unpauseErr      error
	pauseErr        error
	destroyErr      error
	overlays        map[string]string
	overlaysErr     error
	execResp        *hostd.ExecResponse
	execErr         error

	paused    map[string]bool
	destroyed map[string]bool
}

func newFakeHostClient() *fakeHostClient {
	return &fakeHostClient{
		paused:    make(map[string]bool),
		destroyed: make(map[string]bool),
	}
}

func (f *fakeHostClient) ReportInventory(ctx context.Context) (*hostd.ReportInventoryResponse, error) {
	return &hostd.ReportInventoryResponse{Host: "fake-host", CPUs: 8, MemBytes: 16 << 30}, nil
}

func (f *fakeHostClient) SpawnWarm(ctx context.Context, req *hostd.SpawnWarmRequest) (*hostd.SpawnWarmResponse, error) {
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	f.mu.Lock()
	f.spawnAttempts++
	if f.spawnFailFirstN > 0 && f.spawnAttempts <= f.spawnFailFirstN {
		f.mu.Unlock()
		return nil, errFakeSpawn
	}
	f.spawnN++
	id := fmt.Sprintf("vm-%d", f.spawnN)
	f.mu.Unlock()
	return &hostd.SpawnWarmResponse{VMID: id}, nil
}

func (f *fakeHostClient) GetOverlays(ctx context.Context, vmID string) (map[string]string, error) {
	if f.overlaysErr != nil {
		return nil, f.overlaysErr
	}
	if f.overlays != nil {
		return f.overlays, nil
	}
	return map[string]string{"overlay": "/vms/" + vmID + "/overlay-top.qcow2"}, nil
}

func (f *fakeHostClient) Pause(ctx context.Context, vmID string) error {
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.mu.Lock()
	f.paused[vmID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeHostClient) Unpause(ctx context.Context, vmID string) error {
	if f.unpauseErr != nil {
		return f.unpauseErr
	}
	f.mu.Lock()
	f.paused[vmID] = false
	f.mu.Unlock()
	return nil
}

func (f *fakeHostClient) Destroy(ctx context.Context, vmID string) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.mu.Lock()
	f.destroyed[vmID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeHostClient) Exec(ctx context.Context, req *hostd.ExecRequest) (*hostd.ExecResponse, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.execResp != nil {
		return f.execResp, nil
	}
	return &hostd.ExecResponse{ExitCode: 0}, nil
}

var errFakeUnpause = errors.New("fake: unpause failed")
var errFakeSpawn = errors.New("fake: spawn failed")
