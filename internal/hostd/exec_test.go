package hostd

import (
	"context"
	"testing"

	"github.com/hypercore/hc/internal/guestexec"
)

func TestExecRunsArgvInKnownVM(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())
	h.register(&VMRec{ID: "vm-1", Dir: t.TempDir(), State: VMStateRunning})

	resp, err := h.Exec(context.Background(), &ExecRequest{
		VMID: "vm-1",
		Argv: []string{"sh", "-c", "echo hi"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", resp.ExitCode)
	}
	if resp.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", resp.Stdout, "hi\n")
	}
}

func TestExecUnknownVMReturnsNotFound(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	_, err := h.Exec(context.Background(), &ExecRequest{VMID: "no-such-vm", Argv: []string{"true"}})
	if err == nil {
		t.Fatal("expected error for unknown vm")
	}
}

func TestExecNonZeroExitPropagatesToResponse(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())
	h.register(&VMRec{ID: "vm-1", Dir: t.TempDir(), State: VMStateRunning})

	resp, err := h.Exec(context.Background(), &ExecRequest{
		VMID: "vm-1",
		Argv: []string{"sh", "-c", "exit 7"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", resp.ExitCode)
	}
}
