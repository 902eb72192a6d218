// Package controlplane implements the Controller side of the system: the
// pool registry, warm-queue placement/reconciliation, fork dispatch, and
// acquire/release handoff.
package controlplane

import (
	"sync"

	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/shape"
)

// VMState mirrors hostd.VMState on the controller side.
type VMState string

const (
	VMStatePausedWarm VMState = "PAUSED_WARM"
	VMStateRunning    VMState = "RUNNING"
	VMStateDestroyed  VMState = "DESTROYED"
)

// VM is the controller's view of a VM.
type VM struct {
	ID     string
	Host   string
	Shape  shape.Shape
	GPUBDF string
	IP     string
	PoolID string
	State  VMState
}

// poolState is the lock-guarded internal registry entry for one pool.
// guests is an insertion-ordered membership log of every VM ID ever
// admitted to the pool — a historical union, not a live set. The warm
// queues themselves live in Controller.warm, keyed by shape and tagged
// with poolID (see DESIGN.md); Acquire's wire schema carries no pool_id,
// so there is no separate per-pool warm slice here.
type poolState struct {
	mu       sync.Mutex
	id       string
	name     string
	tenantID string
	guests   []string
}

// Pool is the external, lock-free snapshot returned by the registry. The
// wire field is named Hosts to stay bit-exact with the
// Pool{id, name, tenant_id, hosts[]} wire schema even though it holds
// guest VM IDs, not host names (see ListPoolHosts).
type Pool struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	TenantID string   `json:"tenant_id"`
	Hosts    []string `json:"hosts"`
}

func snapshotPool(p *poolState) Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	guests := make([]string, len(p.guests))
	copy(guests, p.guests)
	return Pool{ID: p.id, Name: p.name, TenantID: p.tenantID, Hosts: guests}
}

// warmEntry is one member of a shape-keyed warm queue. poolID stays
// attached to each entry so per-pool bookkeeping (EnsureWarm's "current"
// count) can be derived from the single unified queue.
type warmEntry struct {
	poolID string
	vmID   string
}

// hostEntry is the controller's record of a registered Host daemon.
type hostEntry struct {
	mu        sync.Mutex
	name      string
	addr      string
	client    HostClient
	inventory hostd.ReportInventoryResponse
}

// --- RPC message schemas, field names bit-exact with the wire protocol ---

type CreatePoolSpec struct {
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

type CreatePoolRequest struct {
	Spec CreatePoolSpec `json:"spec"`
}

type Empty struct{}

type ListPoolsResponse struct {
	Pools []Pool `json:"pools"`
}

type ListPoolHostsRequest struct {
	PoolID string `json:"pool_id"`
}

type ListPoolHostsResponse struct {
	Hosts []string `json:"hosts"`
}

type EnsureWarmPoolRequest struct {
	PoolID string      `json:"pool_id"`
	Shape  shape.Shape `json:"shape"`
	Target int         `json:"target"`
}

type EnsureWarmPoolResponse struct {
	Current int `json:"current"`
}

type ForkRequest struct {
	VMID    string `json:"vm_id"`
	HowMany int    `json:"how_many"`
}

type ForkResponse struct {
	VMIDs []string `json:"vm_ids"`
}

type AcquireRequest struct {
	Shape shape.Shape `json:"shape"`
}

type VMHandle struct {
	VMID      string `json:"vm_id"`
	Host      string `json:"host"`
	IP        string `json:"ip"`
	SSHKeyRef string `json:"ssh_key_ref"`
}

type AcquireResponse struct {
	VM VMHandle `json:"vm"`
}

type ReleaseRequest struct {
	VMID    string `json:"vm_id"`
	Recycle bool   `json:"recycle"`
}

type ExecRequest struct {
	VMID       string   `json:"vm_id"`
	Argv       []string `json:"argv"`
	TimeoutSec int      `json:"timeout_sec"`
}

type ExecResponse struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
