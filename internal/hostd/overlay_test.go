package hostd

import (
	"context"
	"os"
	"testing"

	"github.com/hypercore/hc/internal/guestexec"
)

func TestGetOverlaysHarvestsDerivedOverlay(t *testing.T) {
	cfg := testConfig(t, `touch "$8"`, "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	dir := t.TempDir()
	vm := &VMRec{ID: "vm-parent", Dir: dir, State: VMStateRunning}
	h.register(vm)

	if err := os.WriteFile(vm.overlayPath(), []byte("backing"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := startFakeQMPServer(t)
	defer srv.close()
	if err := os.Symlink(srv.path(), vm.socketPath()); err != nil {
		t.Fatalf("symlink fake socket: %v", err)
	}

	overlays, err := h.GetOverlays(context.Background(), "vm-parent")
	if err != nil {
		t.Fatalf("GetOverlays: %v", err)
	}
	top, ok := overlays["overlay"]
	if !ok || top != vm.overlayTopPath() {
		t.Errorf("overlays = %v, want overlay=%s", overlays, vm.overlayTopPath())
	}
	if _, err := os.Stat(top); err != nil {
		t.Errorf("derived overlay not created: %v", err)
	}

	// Each monitor command opens its own connection and redoes the
	// capabilities handshake, so pause then resume yields four executes.
	seen := drainExecutes(t, srv, 4)
	if seen[1] != cmdStop || seen[3] != cmdCont {
		t.Errorf("executes = %v, want [.. %s .. %s]", seen, cmdStop, cmdCont)
	}
}

func TestGetOverlaysUnknownVM(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	if _, err := h.GetOverlays(context.Background(), "no-such-vm"); err == nil {
		t.Fatal("expected error for unknown vm")
	}
}

func TestGetOverlaysResumesOnCreateFailure(t *testing.T) {
	cfg := testConfig(t, `echo boom >&2; exit 1`, "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	dir := t.TempDir()
	vm := &VMRec{ID: "vm-parent", Dir: dir, State: VMStateRunning}
	h.register(vm)
	if err := os.WriteFile(vm.overlayPath(), []byte("backing"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := startFakeQMPServer(t)
	defer srv.close()
	if err := os.Symlink(srv.path(), vm.socketPath()); err != nil {
		t.Fatalf("symlink fake socket: %v", err)
	}

	if _, err := h.GetOverlays(context.Background(), "vm-parent"); err == nil {
		t.Fatal("expected error when overlay create fails")
	}

	// pause then a recovery resume, both before the failure is returned.
	seen := drainExecutes(t, srv, 4)
	if seen[1] != cmdStop || seen[3] != cmdCont {
		t.Errorf("executes = %v, want [.. %s .. %s]", seen, cmdStop, cmdCont)
	}
}
