package controlplane

import (
	"context"
	"testing"

	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/shape"
)

func TestAcquireExhaustedQueue(t *testing.T) {
	c := newTestController()
	_, err := c.Acquire(context.Background(), shape.Shape{VCPU: 1, RAMGB: 1})
	if err == nil {
		t.Fatal("expected error acquiring from an empty queue")
	}
}

func TestAcquireTransitionsToRunning(t *testing.T) {
	c := newTestController()
	p := c.CreatePool(CreatePoolSpec{Name: "default"})
	host := newFakeHostClient()
	c.RegisterHost("host-1", "localhost:1", host, hostd.ReportInventoryResponse{Host: "host-1"})

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	if _, err := c.EnsureWarm(context.Background(), p.ID, sh, 1); err != nil {
		t.Fatal(err)
	}

	handle, err := c.Acquire(context.Background(), sh)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	vm, ok := c.lookupVM(handle.VMID)
	if !ok {
		t.Fatalf("acquired vm %s not found", handle.VMID)
	}
	if vm.State != VMStateRunning {
		t.Errorf("state = %s, want RUNNING", vm.State)
	}
	if host.paused[handle.VMID] {
		t.Errorf("vm %s still marked paused on the fake host", handle.VMID)
	}
	if handle.SSHKeyRef != "devbox-default" {
		t.Errorf("SSHKeyRef = %q, want devbox-default", handle.SSHKeyRef)
	}
}

func TestAcquireLeavesEntryQueuedOnUnpauseFailure(t *testing.T) {
	c := newTestController()
	p := c.CreatePool(CreatePoolSpec{Name: "default"})
	host := newFakeHostClient()
	c.RegisterHost("host-1", "localhost:1", host, hostd.ReportInventoryResponse{Host: "host-1"})

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	if _, err := c.EnsureWarm(context.Background(), p.ID, sh, 1); err != nil {
		t.Fatal(err)
	}

	host.unpauseErr = errFakeUnpause
	if _, err := c.Acquire(context.Background(), sh); err == nil {
		t.Fatal("expected Acquire to fail when the head candidate's unpause fails")
	}
	if n := c.warmCountForPool(p.ID, sh.Key()); n != 1 {
		t.Fatalf("warm count = %d after failed unpause, want 1 (no leak)", n)
	}

	// With unpause working again, the same VM that failed to unpause is
	// still at the head of the queue and Acquire succeeds without needing
	// another EnsureWarm call.
	host.unpauseErr = nil
	if _, err := c.Acquire(context.Background(), sh); err != nil {
		t.Fatalf("Acquire after recovery: %v", err)
	}
	if n := c.warmCountForPool(p.ID, sh.Key()); n != 0 {
		t.Errorf("warm count = %d after successful acquire, want 0", n)
	}
}

func TestReleaseRecyclesBackToWarmQueue(t *testing.T) {
	c := newTestController()
	p := c.CreatePool(CreatePoolSpec{Name: "default"})
	host := newFakeHostClient()
	c.RegisterHost("host-1", "localhost:1", host, hostd.ReportInventoryResponse{Host: "host-1"})

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	if _, err := c.EnsureWarm(context.Background(), p.ID, sh, 1); err != nil {
		t.Fatal(err)
	}
	handle, err := c.Acquire(context.Background(), sh)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Release(context.Background(), handle.VMID, true); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !host.paused[handle.VMID] {
		t.Errorf("recycled vm %s was not paused on the host", handle.VMID)
	}

	// The VM should be back at the head of the warm queue.
	handle2, err := c.Acquire(context.Background(), sh)
	if err != nil {
		t.Fatalf("Acquire after recycle: %v", err)
	}
	if handle2.VMID != handle.VMID {
		t.Errorf("expected to re-acquire the recycled vm %s, got %s", handle.VMID, handle2.VMID)
	}
}

func TestReleaseWithoutRecycleDestroys(t *testing.T) {
	c := newTestController()
	p := c.CreatePool(CreatePoolSpec{Name: "default"})
	host := newFakeHostClient()
	c.RegisterHost("host-1", "localhost:1", host, hostd.ReportInventoryResponse{Host: "host-1"})

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	if _, err := c.EnsureWarm(context.Background(), p.ID, sh, 1); err != nil {
		t.Fatal(err)
	}
	handle, err := c.Acquire(context.Background(), sh)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Release(context.Background(), handle.VMID, false); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !host.destroyed[handle.VMID] {
		t.Errorf("vm %s was not destroyed on the host", handle.VMID)
	}
	if _, ok := c.lookupVM(handle.VMID); ok {
		t.Errorf("vm %s still present in controller index after destroy-release", handle.VMID)
	}
}

func TestReleaseUnknownVM(t *testing.T) {
	c := newTestController()
	if err := c.Release(context.Background(), "no-such-vm", true); err != nil {
		t.Fatalf("Release of an unknown vm = %v, want nil (no-op)", err)
	}
}

func TestExecForwardsToHost(t *testing.T) {
	c := newTestController()
	p := c.CreatePool(CreatePoolSpec{Name: "default"})
	host := newFakeHostClient()
	host.execResp = &hostd.ExecResponse{ExitCode: 7, Stdout: "hi"}
	c.RegisterHost("host-1", "localhost:1", host, hostd.ReportInventoryResponse{Host: "host-1"})

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	if _, err := c.EnsureWarm(context.Background(), p.ID, sh, 1); err != nil {
		t.Fatal(err)
	}
	handle, err := c.Acquire(context.Background(), sh)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Exec(context.Background(), &ExecRequest{VMID: handle.VMID, Argv: []string{"true"}})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp.ExitCode != 7 || resp.Stdout != "hi" {
		t.Errorf("Exec() = %+v, want exit_code=7 stdout=hi", resp)
	}
}

func TestHealth(t *testing.T) {
	c := newTestController()
	h := c.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("Health().Status = %q, want ok", h.Status)
	}
}
