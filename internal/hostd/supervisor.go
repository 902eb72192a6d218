package hostd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hypercore/hc/internal/hcerr"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/shape"
)

// SpawnWarm mints a VM, materializes its overlay disk, launches the
// emulator with the fixed argument profile, and returns immediately
// without waiting for the emulator to become ready — readiness is
// observed lazily by the first monitor-client command.
func (h *Host) SpawnWarm(ctx context.Context, sh shape.Shape, gpuBDF string, snapshot map[string]string) (string, error) {
	id := h.idgen.New()
	dir := filepath.Join(h.cfg.Home, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create artifacts dir: %v", hcerr.ErrInternal, err)
	}

	vm := &VMRec{
		ID:      id,
		GPUBDF:  gpuBDF,
		Shape:   sh,
		State:   VMStatePausedWarm,
		Dir:     dir,
		Created: time.Now(),
	}

	backing := h.cfg.RootImage
	if snapshot != nil {
		if parent, ok := snapshot["overlay"]; ok && parent != "" {
			backing = parent
		}
	}
	if err := h.createOverlay(ctx, vm.overlayPath(), backing); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	cmd, err := h.buildEmulatorCmd(vm)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("%w: start emulator: %v", hcerr.ErrInternal, err)
	}
	vm.Cmd = cmd
	go h.reap(vm)

	h.register(vm)
	metrics.Global().RecordVMSpawned()
	logging.Op().Info("vm spawned", "vm_id", id, "gpu_bdf", gpuBDF, "shape", sh.Key())
	return id, nil
}

func (h *Host) createOverlay(ctx context.Context, path, backing string) error {
	cmd := exec.CommandContext(ctx, h.cfg.QemuImgPath,
		"create", "-f", "qcow2", "-F", "qcow2", "-b", backing, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: qemu-img create: %v: %s", hcerr.ErrInternal, err, out)
	}
	return nil
}

// buildEmulatorCmd constructs the fixed argument profile: headless,
// Q35+KVM, host CPU, 2 vCPU / 1 GiB RAM (placeholder), no defaults, UTC
// RTC, single I/O thread, a two-node block chain (file -> qcow2(overlay))
// bound to a virtio-blk-pci disk, a kernel image, and a monitor socket
// listening at qmp.sock with wait=on so the emulator blocks until a
// client connects.
func (h *Host) buildEmulatorCmd(vm *VMRec) (*exec.Cmd, error) {
	logPath := filepath.Join(h.cfg.LogDir, vm.ID+".qemu.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open qemu log: %v", hcerr.ErrInternal, err)
	}

	blockdevFile := fmt.Sprintf("driver=file,filename=%s,node-name=overlay-file", vm.overlayPath())
	blockdevQcow2 := "driver=qcow2,file=overlay-file,node-name=overlay-top"

	args := []string{
		"-machine", "q35,accel=kvm",
		"-cpu", "host",
		"-smp", "2",
		"-m", "1024",
		"-nodefaults",
		"-rtc", "base=utc",
		"-object", "iothread,id=io0",
		"-blockdev", blockdevFile,
		"-blockdev", blockdevQcow2,
		"-device", "virtio-blk-pci,drive=overlay-top,iothread=io0",
		"-kernel", h.cfg.KernelPath,
		"-display", "none",
		"-serial", "none",
		"-parallel", "none",
		"-daemonize",
		"-pidfile", filepath.Join(vm.Dir, "qemu.pid"),
		"-qmp", fmt.Sprintf("unix:%s,server,wait=on", vm.socketPath()),
	}

	cmd := exec.Command(h.cfg.QemuPath, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	return cmd, nil
}

// reap waits on the launched emulator process so it is not left as a
// zombie; it does not touch the VM record. -daemonize means Cmd.Wait
// returns as soon as the parent qemu process forks away, so this says
// nothing about the emulator's liveness.
func (h *Host) reap(vm *VMRec) {
	if vm.Cmd == nil {
		return
	}
	_ = vm.Cmd.Wait()
}

// Destroy sends quit over the monitor socket, awaits the (best-effort)
// reply, and only then removes the VM record and artifacts directory:
// quit-then-remove, not remove-then-quit, so a failed quit leaves the
// record in place for the caller to retry. Artifact removal is
// best-effort and must never block on emulator process exit.
func (h *Host) Destroy(ctx context.Context, vmID string) error {
	vm, ok := h.lookup(vmID)
	if !ok {
		return nil
	}

	mon := newMonitorClient(vm.socketPath())
	if err := mon.quit(ctx); err != nil {
		return fmt.Errorf("%w: quit vm %s: %v", hcerr.ErrInternal, vmID, err)
	}

	h.remove(vmID)
	go func() {
		_ = os.RemoveAll(vm.Dir)
	}()
	metrics.Global().RecordVMDestroyed()
	logging.Op().Info("vm destroyed", "vm_id", vmID)
	return nil
}
