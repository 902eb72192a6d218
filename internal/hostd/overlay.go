package hostd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/hypercore/hc/internal/hcerr"
	"github.com/hypercore/hc/internal/logging"
)

const (
	overlayWaitInterval = 50 * time.Millisecond
	overlayWaitDeadline  = 5 * time.Second
)

// GetOverlays pauses the VM, derives a child-backing overlay file from its
// current (paused) overlay, resumes it, and returns the derived path keyed
// by role. At resume time the derived file is closed and nothing writes
// to it, while the parent's live overlay has no writer other than the
// resumed emulator. The derived file serves as the backing image for
// subsequently spawned children; it must never be written to directly.
func (h *Host) GetOverlays(ctx context.Context, vmID string) (map[string]string, error) {
	vm, ok := h.lookup(vmID)
	if !ok {
		return nil, fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, vmID)
	}

	mon := newMonitorClient(vm.socketPath())
	if err := mon.pause(ctx); err != nil {
		return nil, fmt.Errorf("pause vm %s for overlay harvest: %w", vmID, err)
	}

	top := vm.overlayTopPath()
	if err := h.waitForOverlay(ctx, vm.overlayPath()); err != nil {
		_ = mon.resume(ctx)
		return nil, err
	}

	if err := h.createBackedOverlay(ctx, vm.overlayPath(), top); err != nil {
		_ = mon.resume(ctx)
		return nil, err
	}

	if err := mon.resume(ctx); err != nil {
		return nil, fmt.Errorf("resume vm %s after overlay harvest: %w", vmID, err)
	}

	logging.Op().Info("overlay harvested", "vm_id", vmID, "overlay_top", top)
	return map[string]string{"overlay": top}, nil
}

func (h *Host) waitForOverlay(ctx context.Context, path string) error {
	deadline := time.Now().Add(overlayWaitDeadline)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: overlay %s never appeared", hcerr.ErrDeadlineExceeded, path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(overlayWaitInterval):
		}
	}
}

// createBackedOverlay runs `qemu-img create -f qcow2 -F qcow2 -b backing
// derived` exactly once.
func (h *Host) createBackedOverlay(ctx context.Context, backing, derived string) error {
	cmd := exec.CommandContext(ctx, h.cfg.QemuImgPath,
		"create", "-f", "qcow2", "-F", "qcow2", "-b", backing, derived)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: qemu-img create overlay: %v: %s", hcerr.ErrInternal, err, out)
	}
	return nil
}
