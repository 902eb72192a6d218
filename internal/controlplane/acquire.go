package controlplane

import (
	"context"
	"fmt"

	"github.com/hypercore/hc/internal/audit"
	"github.com/hypercore/hc/internal/hcerr"
	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/shape"
	"github.com/hypercore/hc/internal/tracing"
)

// maxAcquireAttempts bounds how many stale queue entries Acquire will skip
// past before giving up, so a handful of broken VMs can't turn a single
// Acquire call into an unbounded loop.
const maxAcquireAttempts = 8

// sshKeyRef is the fixed SSH key reference handed back with every
// acquired VM. Key provisioning is out of scope; every devbox trusts the
// same default key.
const sshKeyRef = "devbox-default"

// Acquire hands out one warm VM matching shape, transitioning it from
// PAUSED_WARM to RUNNING. It peeks the head of the queue without removing
// it and only dequeues once the host confirms the unpause succeeded; if
// the unpause fails, the entry is left in place (it is not necessarily
// stale — the host RPC itself may be what failed) and the error
// propagates to the caller rather than silently dropping the VM.
func (c *Controller) Acquire(ctx context.Context, sh shape.Shape) (*VMHandle, error) {
	ctx, span := tracing.StartSpan(ctx, "Acquire", tracing.AttrShape.String(sh.Key()))
	defer span.End()

	key := sh.Key()

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		entry, ok := c.peekWarm(key)
		if !ok {
			metrics.Global().RecordAcquire(false)
			err := fmt.Errorf("%w: no warm vm for shape %s", hcerr.ErrResourceExhausted, key)
			tracing.SetSpanError(span, err)
			return nil, err
		}

		vm, ok := c.lookupVM(entry.vmID)
		if !ok {
			c.removeWarmEntry(key, entry) // stale entry, try next
			continue
		}
		host := c.lookupHost(vm.Host)
		if host == nil {
			c.removeWarmEntry(key, entry)
			continue
		}

		if err := host.client.Unpause(ctx, vm.ID); err != nil {
			metrics.Global().RecordAcquire(false)
			err = fmt.Errorf("unpause vm %s: %w", vm.ID, err)
			logging.Op().Warn("acquire unpause failed, vm stays queued", "vm_id", vm.ID, "error", err)
			tracing.SetSpanError(span, err)
			return nil, err
		}

		c.removeWarmEntry(key, entry)
		c.setVMState(vm.ID, VMStateRunning)
		metrics.Global().RecordAcquire(true)
		logging.Op().Info("vm acquired", "vm_id", vm.ID, "shape", key, "host", vm.Host)
		c.recordAudit(ctx, audit.Event{Kind: "acquire", VMID: vm.ID, PoolID: vm.PoolID, Host: vm.Host, Detail: key})
		tracing.SetSpanOK(span)
		return &VMHandle{VMID: vm.ID, Host: vm.Host, IP: vm.IP, SSHKeyRef: sshKeyRef}, nil
	}

	metrics.Global().RecordAcquire(false)
	err := fmt.Errorf("%w: exhausted %d stale entries for shape %s", hcerr.ErrResourceExhausted, maxAcquireAttempts, key)
	tracing.SetSpanError(span, err)
	return nil, err
}

// Release returns a VM to the pool. With recycle=true it pauses the VM and
// re-queues it as warm under its own pool and shape; otherwise it destroys
// the VM outright. Releasing an unknown VM is a no-op.
func (c *Controller) Release(ctx context.Context, vmID string, recycle bool) error {
	vm, ok := c.lookupVM(vmID)
	if !ok {
		return nil
	}
	host := c.lookupHost(vm.Host)
	if host == nil {
		return fmt.Errorf("%w: host %s for vm %s", hcerr.ErrNotFound, vm.Host, vmID)
	}

	metrics.Global().RecordRelease(recycle)

	if !recycle {
		if err := host.client.Destroy(ctx, vmID); err != nil {
			return fmt.Errorf("destroy released vm %s: %w", vmID, err)
		}
		c.removeVM(vmID)
		logging.Op().Info("vm released and destroyed", "vm_id", vmID)
		c.recordAudit(ctx, audit.Event{Kind: "release_destroy", VMID: vmID, PoolID: vm.PoolID, Host: vm.Host})
		return nil
	}

	if err := host.client.Pause(ctx, vmID); err != nil {
		return fmt.Errorf("pause released vm %s: %w", vmID, err)
	}
	c.setVMState(vmID, VMStatePausedWarm)
	c.enqueueWarm(vm.Shape.Key(), warmEntry{poolID: vm.PoolID, vmID: vmID})
	logging.Op().Info("vm released and recycled", "vm_id", vmID)
	c.recordAudit(ctx, audit.Event{Kind: "release_recycle", VMID: vmID, PoolID: vm.PoolID, Host: vm.Host})
	return nil
}

// Exec forwards a guest command to the VM's host.
func (c *Controller) Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	vm, ok := c.lookupVM(req.VMID)
	if !ok {
		return nil, fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, req.VMID)
	}
	host := c.lookupHost(vm.Host)
	if host == nil {
		return nil, fmt.Errorf("%w: host %s for vm %s", hcerr.ErrNotFound, vm.Host, req.VMID)
	}
	resp, err := host.client.Exec(ctx, &hostd.ExecRequest{VMID: req.VMID, Argv: req.Argv, TimeoutSec: req.TimeoutSec})
	if err != nil {
		return nil, err
	}
	return &ExecResponse{ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

// Health reports a single aggregate readiness status.
func (c *Controller) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{Status: "ok"}
}

// peekWarm returns the head of the warm queue for shapeKey without
// removing it, so a failed commit (a failed Unpause) leaves it queued.
func (c *Controller) peekWarm(shapeKey string) (warmEntry, bool) {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	q := c.warm[shapeKey]
	if len(q) == 0 {
		return warmEntry{}, false
	}
	return q[0], true
}

// removeWarmEntry removes the first matching entry from the warm queue for
// shapeKey. It matches by value rather than assuming e is still the head,
// since another call may have mutated the queue between a peek and this
// commit.
func (c *Controller) removeWarmEntry(shapeKey string, e warmEntry) {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	q := c.warm[shapeKey]
	for i, cur := range q {
		if cur == e {
			c.warm[shapeKey] = append(q[:i:i], q[i+1:]...)
			return
		}
	}
}

func (c *Controller) setVMState(vmID string, state VMState) {
	c.vmsMu.Lock()
	defer c.vmsMu.Unlock()
	if vm, ok := c.vms[vmID]; ok {
		vm.State = state
	}
}

func (c *Controller) removeVM(vmID string) {
	c.vmsMu.Lock()
	defer c.vmsMu.Unlock()
	delete(c.vms, vmID)
}
