package hostd

import (
	"sync"

	"github.com/hypercore/hc/internal/guestexec"
	"github.com/hypercore/hc/internal/idgen"
)

// Config configures the Host daemon: its artifact root, base images, and
// the external qemu/qemu-img binaries it shells out to.
type Config struct {
	Home         string   // $HC_HOME — per-VM artifact root
	RootImage    string   // ../../linux/root.qcow2
	KernelPath   string   // ./linux/vmlinuz
	LogDir       string   // directory for qemu.log files
	QemuPath     string   // qemu-system-x86_64 binary
	QemuImgPath  string   // qemu-img binary
	HostName     string   // logical host name reported via ReportInventory
	CPUs         int      // static inventory
	MemBytes     int64    // static inventory
	GPUsBDF      []string // static inventory
}

// Host owns the lifecycle of emulator processes on one hypervisor: the
// VM record table, emulator supervision, the monitor-socket protocol,
// overlay harvesting, and destroy/cleanup.
type Host struct {
	cfg      Config
	idgen    idgen.Generator
	executor guestexec.Executor

	mu  sync.RWMutex
	vms map[string]*VMRec
}

// New creates a Host daemon. executor backs the Exec RPC; pass
// guestexec.NewLocal() for the in-scope stub or a real forwarding
// implementation for production deployment.
func New(cfg Config, gen idgen.Generator, executor guestexec.Executor) *Host {
	return &Host{
		cfg:      cfg,
		idgen:    gen,
		executor: executor,
		vms:      make(map[string]*VMRec),
	}
}

func (h *Host) lookup(vmID string) (*VMRec, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	vm, ok := h.vms[vmID]
	return vm, ok
}

func (h *Host) register(vm *VMRec) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vms[vm.ID] = vm
}

func (h *Host) remove(vmID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vms, vmID)
}

// setState updates a tracked VM's state if it is still present. The table
// must be re-checked after every suspension point rather than assuming the
// record found before an await is still valid.
func (h *Host) setState(vmID string, state VMState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if vm, ok := h.vms[vmID]; ok {
		vm.State = state
	}
}

// VMCount returns the number of VM records currently tracked.
func (h *Host) VMCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vms)
}
