package hostd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hypercore/hc/internal/guestexec"
	"github.com/hypercore/hc/internal/shape"
)

type fakeIDGen struct{ n int }

func (g *fakeIDGen) New() string {
	g.n++
	return fmt.Sprintf("vm-%d", g.n)
}

// writeFakeBinary writes an executable shell script to dir/name and
// returns its path. body runs as the script's entire body.
func writeFakeBinary(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, qemuImgBody, qemuBody string) Config {
	t.Helper()
	home := t.TempDir()
	logDir := t.TempDir()
	binDir := t.TempDir()
	return Config{
		Home:        home,
		RootImage:   filepath.Join(t.TempDir(), "root.qcow2"),
		KernelPath:  filepath.Join(t.TempDir(), "vmlinuz"),
		LogDir:      logDir,
		QemuImgPath: writeFakeBinary(t, binDir, "qemu-img", qemuImgBody),
		QemuPath:    writeFakeBinary(t, binDir, "qemu", qemuBody),
		HostName:    "test-host",
	}
}

func TestSpawnWarmCreatesOverlayAndRegistersVM(t *testing.T) {
	cfg := testConfig(t,
		`touch "$8"`, // create -f qcow2 -F qcow2 -b <backing> <dest>, dest is $8
		`exit 0`,
	)
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	sh := shape.Shape{VCPU: 2, RAMGB: 4}
	id, err := h.SpawnWarm(context.Background(), sh, "", nil)
	if err != nil {
		t.Fatalf("SpawnWarm: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty vm id")
	}
	if h.VMCount() != 1 {
		t.Errorf("VMCount() = %d, want 1", h.VMCount())
	}
	vm, ok := h.lookup(id)
	if !ok {
		t.Fatalf("vm %s not registered", id)
	}
	if vm.State != VMStatePausedWarm {
		t.Errorf("state = %s, want PAUSED_WARM", vm.State)
	}
	if _, err := os.Stat(vm.overlayPath()); err != nil {
		t.Errorf("overlay file not created: %v", err)
	}
}

func TestSpawnWarmUsesSnapshotOverlayAsBacking(t *testing.T) {
	var sawBacking string
	binDir := t.TempDir()
	scriptPath := filepath.Join(binDir, "qemu-img")
	// create -f qcow2 -F qcow2 -b <backing> <dest>: backing is $7, dest is $8.
	script := "#!/bin/sh\necho \"$7\" > " + filepath.Join(binDir, "backing.txt") + "\ntouch \"$8\"\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, "", `exit 0`)
	cfg.QemuImgPath = scriptPath
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	parentOverlay := filepath.Join(t.TempDir(), "parent-overlay-top.qcow2")
	_, err := h.SpawnWarm(context.Background(), shape.Shape{VCPU: 1, RAMGB: 1}, "", map[string]string{"overlay": parentOverlay})
	if err != nil {
		t.Fatalf("SpawnWarm: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(binDir, "backing.txt"))
	if err != nil {
		t.Fatalf("reading captured backing arg: %v", err)
	}
	sawBacking = string(data)
	if want := parentOverlay + "\n"; sawBacking != want {
		t.Errorf("backing image = %q, want %q", sawBacking, want)
	}
}

func TestSpawnWarmFailsWhenOverlayCreateFails(t *testing.T) {
	cfg := testConfig(t, `echo boom >&2; exit 1`, `exit 0`)
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	_, err := h.SpawnWarm(context.Background(), shape.Shape{VCPU: 1, RAMGB: 1}, "", nil)
	if err == nil {
		t.Fatal("expected error when qemu-img create fails")
	}
	if h.VMCount() != 0 {
		t.Errorf("VMCount() = %d, want 0 after failed spawn", h.VMCount())
	}
}

func TestDestroySendsQuitAndRemovesRecord(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())

	dir := t.TempDir()
	vm := &VMRec{ID: "vm-x", Dir: dir, State: VMStateRunning}
	h.register(vm)

	srv := startFakeQMPServer(t)
	defer srv.close()
	// Point the vm's socket path at the fake server by placing the socket
	// file where socketPath() expects it: dir/qmp.sock.
	if err := os.Symlink(srv.path(), vm.socketPath()); err != nil {
		t.Fatalf("symlink fake socket: %v", err)
	}

	if err := h.Destroy(context.Background(), "vm-x"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, ok := h.lookup("vm-x"); ok {
		t.Error("vm record still present after Destroy")
	}

	seen := drainExecutes(t, srv, 2)
	if seen[1] != cmdQuit {
		t.Errorf("second execute = %s, want %s", seen[1], cmdQuit)
	}
}

func TestDestroyUnknownVMIsNoop(t *testing.T) {
	cfg := testConfig(t, "", "")
	h := New(cfg, &fakeIDGen{}, guestexec.NewLocal())
	if err := h.Destroy(context.Background(), "no-such-vm"); err != nil {
		t.Errorf("Destroy on unknown vm: %v, want nil", err)
	}
}
