package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/hypercore/hc/internal/audit"
	"github.com/hypercore/hc/internal/hcerr"
	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/shape"
	"github.com/hypercore/hc/internal/tracing"
)

// EnsureWarm reconciles one (pool, shape) warm queue up to target,
// additively only: it never destroys an already-warm VM to bring a queue
// down, it only spawns more to bring a queue up. Calling EnsureWarm again
// with a lower target is a no-op.
func (c *Controller) EnsureWarm(ctx context.Context, poolID string, sh shape.Shape, target int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "EnsureWarm",
		tracing.AttrPoolID.String(poolID), tracing.AttrShape.String(sh.Key()))
	defer span.End()

	metrics.Global().RecordEnsureWarm()

	pool, err := c.getPool(poolID)
	if err != nil {
		tracing.SetSpanError(span, err)
		return 0, err
	}

	key := sh.Key()
	current := c.warmCountForPool(poolID, key)
	if current >= target {
		tracing.SetSpanOK(span)
		return current, nil
	}

	hosts := c.hostsSnapshot()
	if len(hosts) == 0 {
		err := fmt.Errorf("%w: no hosts registered", hcerr.ErrResourceExhausted)
		tracing.SetSpanError(span, err)
		return current, err
	}

	needed := target - current
	for _, host := range hosts {
		for i := 0; i < needed; i++ {
			if current >= target {
				break
			}

			start := time.Now()
			gpuBDF := gpuBDFForIndex(host.inventory.GPUsBDF, i)
			resp, err := host.client.SpawnWarm(ctx, &hostd.SpawnWarmRequest{Shape: sh, GPUBDF: gpuBDF})
			if err != nil {
				logging.Default().Log(&logging.OperationLog{Op: "ensure_warm_spawn", PoolID: poolID, Host: host.name, DurationMs: time.Since(start).Milliseconds(), Success: false, Error: err.Error()})
				logging.Op().Warn("spawn warm vm failed, continuing reconciliation", "pool_id", poolID, "host", host.name, "shape", key, "error", err)
				continue
			}

			vm := &VM{ID: resp.VMID, Host: host.name, Shape: sh, GPUBDF: gpuBDF, PoolID: poolID, State: VMStatePausedWarm}
			c.registerVM(vm)
			pool.admit(vm.ID)
			c.enqueueWarm(key, warmEntry{poolID: poolID, vmID: vm.ID})

			current++
			metrics.Global().SetWarmQueueDepth(poolID, key, current)
			logging.Default().Log(&logging.OperationLog{Op: "ensure_warm_spawn", VMID: vm.ID, PoolID: poolID, Host: host.name, DurationMs: time.Since(start).Milliseconds(), Success: true})
			logging.Op().Info("warm vm reconciled", "pool_id", poolID, "vm_id", vm.ID, "host", host.name, "shape", key)
			c.recordAudit(ctx, audit.Event{Kind: "spawn", VMID: vm.ID, PoolID: poolID, Host: host.name, Detail: key})
		}
		if current >= target {
			break
		}
	}

	tracing.SetSpanOK(span)
	return current, nil
}

// noGPUSentinel is the gpu_bdf value assigned to a warm VM on a host that
// reports no GPUs.
const noGPUSentinel = "0000:00:00.0"

// gpuBDFForIndex assigns a GPU BDF to the i-th warm VM placed on a host,
// cycling through the host's reported GPUs round-robin.
func gpuBDFForIndex(gpus []string, i int) string {
	if len(gpus) == 0 {
		return noGPUSentinel
	}
	return gpus[i%len(gpus)]
}

// recordAudit appends to the durable ledger, logging (not failing the
// caller) on a sink error since the ledger is a side channel, not a
// second source of truth for controller state.
func (c *Controller) recordAudit(ctx context.Context, ev audit.Event) {
	ev.Timestamp = time.Now()
	if err := c.audit.Record(ctx, ev); err != nil {
		logging.Op().Warn("audit record failed", "kind", ev.Kind, "vm_id", ev.VMID, "error", err)
	}
}

func (c *Controller) registerVM(vm *VM) {
	c.vmsMu.Lock()
	defer c.vmsMu.Unlock()
	c.vms[vm.ID] = vm
}

func (c *Controller) enqueueWarm(shapeKey string, e warmEntry) {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	c.warm[shapeKey] = append(c.warm[shapeKey], e)
}

// warmCountForPool derives the per-pool warm count for a shape from the
// unified queue, since the queue itself carries no per-pool slice.
func (c *Controller) warmCountForPool(poolID, shapeKey string) int {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	n := 0
	for _, e := range c.warm[shapeKey] {
		if e.poolID == poolID {
			n++
		}
	}
	return n
}
