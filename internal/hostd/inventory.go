package hostd

import (
	"context"
	"fmt"

	"github.com/hypercore/hc/internal/hcerr"
)

// ReportInventory returns this host's static capacity, as configured at
// startup. The controller calls this once on registration and treats the
// result as authoritative for the lifetime of the connection.
func (h *Host) ReportInventory(ctx context.Context) (*ReportInventoryResponse, error) {
	return &ReportInventoryResponse{
		Host:     h.cfg.HostName,
		CPUs:     h.cfg.CPUs,
		MemBytes: h.cfg.MemBytes,
		GPUsBDF:  h.cfg.GPUsBDF,
	}, nil
}

// Pause stops a VM via the monitor socket and marks it RUNNING no longer.
func (h *Host) Pause(ctx context.Context, vmID string) error {
	vm, ok := h.lookup(vmID)
	if !ok {
		return fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, vmID)
	}
	mon := newMonitorClient(vm.socketPath())
	if err := mon.pause(ctx); err != nil {
		return fmt.Errorf("pause vm %s: %w", vmID, err)
	}
	h.setState(vmID, VMStatePausedWarm)
	return nil
}

// Unpause resumes a VM via the monitor socket and marks it RUNNING.
func (h *Host) Unpause(ctx context.Context, vmID string) error {
	vm, ok := h.lookup(vmID)
	if !ok {
		return fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, vmID)
	}
	mon := newMonitorClient(vm.socketPath())
	if err := mon.resume(ctx); err != nil {
		return fmt.Errorf("resume vm %s: %w", vmID, err)
	}
	h.setState(vmID, VMStateRunning)
	return nil
}
