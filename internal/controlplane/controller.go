package controlplane

import (
	"context"
	"sync"

	"github.com/hypercore/hc/internal/audit"
	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/idgen"
	"github.com/hypercore/hc/internal/logging"
)

// HostInventoryCache receives each Host daemon's reported inventory as the
// Controller registers it. The Controller only writes to it and never
// reads it back: placement always uses the live inventory captured at
// RegisterHost time, and a write failure is logged without blocking
// registration.
type HostInventoryCache interface {
	Put(ctx context.Context, host string, inv hostd.ReportInventoryResponse) error
}

// Controller is the top-level control-plane state: the pool registry, a
// single shape-keyed warm queue shared across every pool, a flat VM index,
// and the set of registered Host daemons.
//
// Acquire's wire schema takes only a shape, with no pool scoping, so the
// warm queue is unified across pools rather than kept per pool; each
// queued entry still carries its originating pool ID so EnsureWarm can
// derive a per-pool count from the shared queue. See DESIGN.md.
type Controller struct {
	idgen idgen.Generator
	audit audit.Sink

	poolsMu sync.Mutex
	pools   map[string]*poolState

	vmsMu sync.RWMutex
	vms   map[string]*VM

	warmMu sync.Mutex
	warm   map[string][]warmEntry // shape.Key() -> FIFO queue

	hostsMu sync.Mutex
	hosts   []*hostEntry // insertion order; placement fills earlier hosts first

	hostCache HostInventoryCache // nil when no cache is configured
}

// New creates an empty Controller. auditSink may be audit.NoopSink{} when
// no durable trail is configured.
func New(gen idgen.Generator, auditSink audit.Sink) *Controller {
	return &Controller{
		idgen: gen,
		audit: auditSink,
		pools: make(map[string]*poolState),
		vms:   make(map[string]*VM),
		warm:  make(map[string][]warmEntry),
	}
}

// SetHostCache attaches an inventory cache used to persist each host's
// reported capacity across controller restarts. Passing nil disables
// caching, which is also the default.
func (c *Controller) SetHostCache(cache HostInventoryCache) {
	c.hostCache = cache
}

// RegisterHost adds a Host daemon to the placement pool, after recording
// its reported inventory, and writes that inventory through to the
// configured cache if any.
func (c *Controller) RegisterHost(name, addr string, client HostClient, inv hostd.ReportInventoryResponse) {
	c.hostsMu.Lock()
	c.hosts = append(c.hosts, &hostEntry{name: name, addr: addr, client: client, inventory: inv})
	c.hostsMu.Unlock()

	if c.hostCache != nil {
		if err := c.hostCache.Put(context.Background(), name, inv); err != nil {
			logging.Op().Warn("host inventory cache write failed", "host", name, "error", err)
		}
	}
}

// hostsSnapshot returns the registered hosts in insertion order. Placement
// walks this slice first-host-wins: it offers one host the whole remaining
// gap to the target before considering the next.
func (c *Controller) hostsSnapshot() []*hostEntry {
	c.hostsMu.Lock()
	defer c.hostsMu.Unlock()
	hosts := make([]*hostEntry, len(c.hosts))
	copy(hosts, c.hosts)
	return hosts
}

func (c *Controller) lookupVM(vmID string) (*VM, bool) {
	c.vmsMu.RLock()
	defer c.vmsMu.RUnlock()
	vm, ok := c.vms[vmID]
	return vm, ok
}

func (c *Controller) lookupHost(name string) *hostEntry {
	c.hostsMu.Lock()
	defer c.hostsMu.Unlock()
	for _, h := range c.hosts {
		if h.name == name {
			return h
		}
	}
	return nil
}
