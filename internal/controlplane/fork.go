package controlplane

import (
	"context"
	"fmt"

	"github.com/hypercore/hc/internal/audit"
	"github.com/hypercore/hc/internal/hcerr"
	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/tracing"
)

// Fork derives howMany new warm VMs from an existing VM's paused disk
// state: harvest a backing overlay from the parent, then spawn each child
// against that overlay as its backing image. Children land in the same
// pool and on the same host as the parent and are immediately eligible
// for Acquire.
func (c *Controller) Fork(ctx context.Context, vmID string, howMany int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "Fork", tracing.AttrVMID.String(vmID), tracing.AttrHowMany.Int(howMany))
	defer span.End()

	if howMany <= 0 {
		err := fmt.Errorf("%w: how_many must be positive", hcerr.ErrInvalidArgument)
		tracing.SetSpanError(span, err)
		return nil, err
	}

	parent, ok := c.lookupVM(vmID)
	if !ok {
		err := fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, vmID)
		tracing.SetSpanError(span, err)
		return nil, err
	}
	host := c.lookupHost(parent.Host)
	if host == nil {
		err := fmt.Errorf("%w: host %s for vm %s", hcerr.ErrNotFound, parent.Host, vmID)
		tracing.SetSpanError(span, err)
		return nil, err
	}

	overlays, err := host.client.GetOverlays(ctx, vmID)
	if err != nil {
		err = fmt.Errorf("harvest overlay from vm %s: %w", vmID, err)
		tracing.SetSpanError(span, err)
		return nil, err
	}

	pool, err := c.getPool(parent.PoolID)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}

	key := parent.Shape.Key()
	children := make([]string, 0, howMany)
	for i := 0; i < howMany; i++ {
		resp, err := host.client.SpawnWarm(ctx, &hostd.SpawnWarmRequest{
			Shape:    parent.Shape,
			GPUBDF:   parent.GPUBDF,
			Snapshot: overlays,
		})
		if err != nil {
			logging.Op().Warn("spawn fork child failed, continuing", "parent_vm_id", vmID, "child", i+1, "how_many", howMany, "error", err)
			continue
		}

		child := &VM{ID: resp.VMID, Host: host.name, Shape: parent.Shape, GPUBDF: parent.GPUBDF, PoolID: parent.PoolID, State: VMStatePausedWarm}
		c.registerVM(child)
		pool.admit(child.ID)
		c.enqueueWarm(key, warmEntry{poolID: parent.PoolID, vmID: child.ID})
		children = append(children, child.ID)
		c.recordAudit(ctx, audit.Event{Kind: "fork", VMID: child.ID, PoolID: parent.PoolID, Host: host.name, Detail: "parent=" + vmID})
	}

	metrics.Global().RecordFork(len(children))
	logging.Op().Info("vm forked", "parent_vm_id", vmID, "how_many", howMany, "children", len(children))
	tracing.SetSpanOK(span)
	return children, nil
}
